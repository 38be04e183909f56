package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chitchat/internal/ir"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(LengthResult{Length: 3})
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   LengthResult `json:"data"`
	}
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(3), resp.Data.Length)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("NOT_SENDER", "only the sender may edit", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_SENDER", resp.Error.Code)
	assert.Equal(t, "only the sender may edit", resp.Error.Message)
	assert.Nil(t, resp.Error.Details)
	assert.NotContains(t, buf.String(), "details")
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"kind": "authorization"}
	err := formatter.Error("NOT_SENDER", "only the sender may edit", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, map[string]any{"kind": "authorization"}, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("done")
	require.NoError(t, err)
	assert.Equal(t, "done\n", buf.String())
}

func TestOutputFormatter_Result(t *testing.T) {
	text := func(w io.Writer) { fmt.Fprintln(w, "rendered") }

	t.Run("text calls renderer", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, f.Result(HasResult{Held: true}, text))
		assert.Equal(t, "rendered\n", buf.String())
	})

	t.Run("json ignores renderer", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Result(HasResult{Held: true}, text))
		assert.NotContains(t, buf.String(), "rendered")
		assert.Contains(t, buf.String(), `"held":true`)
	})
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error("EMPTY_CONTENT", "content must be non-empty", map[string]string{"kind": "validation"})
	require.NoError(t, err)
	assert.Equal(t, "Error [EMPTY_CONTENT]: content must be non-empty\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error("EMPTY_CONTENT", "content must be non-empty", map[string]string{"kind": "validation"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [EMPTY_CONTENT]")
	assert.Contains(t, buf.String(), "Details: map[kind:validation]")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	t.Run("verbose disabled", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: false}
		formatter.VerboseLog("test message %d", 42)
		assert.Empty(t, buf.String())
	})

	t.Run("verbose enabled without ErrWriter", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}
		formatter.VerboseLog("test message %d", 42)
		assert.Equal(t, "test message 42\n", buf.String())
	})

	t.Run("verbose enabled with ErrWriter", func(t *testing.T) {
		out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}
		formatter.VerboseLog("test message %d", 42)
		assert.Empty(t, out.String(), "JSON output must stay clean")
		assert.Equal(t, "test message 42\n", errOut.String())
	})
}

func TestGetExitCode(t *testing.T) {
	rejection := ir.NewError(ir.CodeNotSender, "only the sender may edit")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"exit error failure", NewExitError(ExitFailure, "1 of 2 scenarios failed"), ExitFailure},
		{"exit error command", WrapExitError(ExitCommandError, "failed to open database", errors.New("disk")), ExitCommandError},
		{"ledger rejection", rejection, ExitFailure},
		{"wrapped rejection", fmt.Errorf("send: %w", rejection), ExitFailure},
		{"plain error", errors.New("accepts 2 arg(s), received 1"), ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDescribeError(t *testing.T) {
	t.Run("ledger rejection", func(t *testing.T) {
		rejection := ir.NewError(ir.CodeNotSender, "only the sender may edit")
		code, msg, details := describeError(rejection)
		assert.Equal(t, "NOT_SENDER", code)
		assert.Equal(t, rejection.Error(), msg)
		assert.Equal(t, map[string]string{"kind": string(rejection.Kind)}, details)
	})

	t.Run("failure", func(t *testing.T) {
		code, msg, details := describeError(NewExitError(ExitFailure, "replay verification failed"))
		assert.Equal(t, CodeFailed, code)
		assert.Equal(t, "replay verification failed", msg)
		assert.Nil(t, details)
	})

	t.Run("command error", func(t *testing.T) {
		code, msg, _ := describeError(WrapExitError(ExitCommandError, "invalid index", errors.New("bad digit")))
		assert.Equal(t, CodeCommandError, code)
		assert.Equal(t, "invalid index: bad digit", msg)
	})
}

func TestExitError_Unwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to write", inner)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "failed to write", NewExitError(ExitFailure, "failed to write").Error())
}
