package intent

// Kind identifies which backend action a request is routed to.
type Kind string

const (
	KindChat     Kind = "chat"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindPodcast  Kind = "podcast"
)

// DocumentFormat is the output format of a generated document.
type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "pdf"
	FormatDOCX DocumentFormat = "docx"
)

// Request is the classified form of one user submission.
// Exactly one of Chat, ImageGeneration, DocumentGeneration or
// PodcastGeneration is produced per input.
type Request interface {
	Kind() Kind
	isRequest()
}

// Chat is plain conversational input.
type Chat struct {
	Text string
}

// ImageGeneration asks for a generated picture.
type ImageGeneration struct {
	Prompt string
}

// DocumentGeneration asks for a PDF or DOCX document about Topic.
type DocumentGeneration struct {
	Format DocumentFormat
	Topic  string
}

// PodcastGeneration asks for a narrated audio episode about Topic.
type PodcastGeneration struct {
	Topic string
}

func (Chat) Kind() Kind               { return KindChat }
func (ImageGeneration) Kind() Kind    { return KindImage }
func (DocumentGeneration) Kind() Kind { return KindDocument }
func (PodcastGeneration) Kind() Kind  { return KindPodcast }

func (Chat) isRequest()               {}
func (ImageGeneration) isRequest()    {}
func (DocumentGeneration) isRequest() {}
func (PodcastGeneration) isRequest()  {}

// Payload returns the free-text part of the request: the chat text, the
// image prompt or the document/podcast topic.
func Payload(r Request) string {
	switch v := r.(type) {
	case Chat:
		return v.Text
	case ImageGeneration:
		return v.Prompt
	case DocumentGeneration:
		return v.Topic
	case PodcastGeneration:
		return v.Topic
	default:
		return ""
	}
}
