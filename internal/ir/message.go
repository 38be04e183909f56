package ir

// Body is the mutable part of a message: Active{Content} or Deleted{}.
//
// Deleted carries no content, so a deleted message cannot expose text and
// cannot be edited back to life. The only transitions are provided by
// Message.Edit and Message.Delete.
type Body interface {
	isBody()
}

// Active is the body of a live message. Content is never empty.
type Active struct {
	Content string
}

func (Active) isBody() {}

// Deleted is the terminal body of a soft-deleted message.
type Deleted struct{}

func (Deleted) isBody() {}

// Message is one entry in a conversation log.
// Sender, Recipient and CreatedAt are fixed at creation.
type Message struct {
	Sender    Identity
	Recipient Identity
	CreatedAt int64 // unix seconds
	Body      Body
}

// NewMessage creates an Active message.
func NewMessage(sender, recipient Identity, content string, createdAt int64) Message {
	return Message{
		Sender:    sender,
		Recipient: recipient,
		CreatedAt: createdAt,
		Body:      Active{Content: content},
	}
}

// Content returns the current text, or "" once deleted.
func (m Message) Content() string {
	if a, ok := m.Body.(Active); ok {
		return a.Content
	}
	return ""
}

// IsDeleted reports whether the message reached the terminal state.
func (m Message) IsDeleted() bool {
	_, ok := m.Body.(Deleted)
	return ok
}

// Edit returns m with its content replaced.
// Fails with ErrEmptyContent or ErrAlreadyDeleted.
func (m Message) Edit(content string) (Message, error) {
	if content == "" {
		return m, NewError(CodeEmptyContent, "new content must be non-empty")
	}
	if m.IsDeleted() {
		return m, NewError(CodeAlreadyDeleted, "message has been deleted")
	}
	m.Body = Active{Content: content}
	return m, nil
}

// Delete returns m in the Deleted state. Deleting twice is rejected with
// ErrAlreadyDeleted rather than absorbed.
func (m Message) Delete() (Message, error) {
	if m.IsDeleted() {
		return m, NewError(CodeAlreadyDeleted, "message has been deleted")
	}
	m.Body = Deleted{}
	return m, nil
}

// MessageView is the flattened, serializable form of a message.
type MessageView struct {
	Index     int64    `json:"index"`
	Sender    Identity `json:"sender"`
	Recipient Identity `json:"recipient"`
	CreatedAt int64    `json:"created_at"`
	Deleted   bool     `json:"deleted"`
	Content   string   `json:"content"`
}

// View flattens m at position index.
func (m Message) View(index int64) MessageView {
	return MessageView{
		Index:     index,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		CreatedAt: m.CreatedAt,
		Deleted:   m.IsDeleted(),
		Content:   m.Content(),
	}
}
