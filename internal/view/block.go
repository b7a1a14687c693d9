package view

// Role of a rendered message block
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Link is one numbered citation under a message
type Link struct {
	Index int
	URL   string
}

// Block is one rendered message in the popup's message list
type Block struct {
	Role    Role
	Content string
	Links   []Link
}

// NewBlock numbers citations 1..N in the order given.
func NewBlock(role Role, content string, citations []string) Block {
	b := Block{Role: role, Content: content}
	for i, url := range citations {
		b.Links = append(b.Links, Link{Index: i + 1, URL: url})
	}
	return b
}

// StatusKind colours the status line
type StatusKind string

const (
	StatusNone    StatusKind = ""
	StatusError   StatusKind = "error"
	StatusSuccess StatusKind = "success"
)

// Section is the visible top-level form of the popup
type Section string

const (
	SectionCredentials Section = "api-key-section"
	SectionChat        Section = "chat-section"
)

const (
	SendLabel    = "Send"
	SendingLabel = "Sending..."
)
