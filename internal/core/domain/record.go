package domain

// Kind discriminates classified records.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindFile  Kind = "file"
)

// Order gives the tie-break position used when records share a timestamp.
func (k Kind) Order() int {
	switch k {
	case KindText:
		return 0
	case KindImage:
		return 1
	case KindAudio:
		return 2
	case KindFile:
		return 3
	default:
		return 4
	}
}

// Role is the side of the conversation a sender belongs to.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

// Display names used when the sender has no name.
const (
	DefaultAgentName    = "Atendente"
	DefaultCustomerName = "Cliente"
)

// ClassifiedRecord is one normalized unit of conversation content.
// Text records only use the envelope; media records fill the media fields.
type ClassifiedRecord struct {
	Kind            Kind
	ID              string
	SourceMessageID int64
	SenderName      string
	SenderRole      Role
	CreatedAt       Timestamp
	Content         string

	URL       string
	MIME      string
	FileName  string
	Extension string
	Size      int64
}

// EnrichStatus reports the outcome of media enrichment.
type EnrichStatus string

const (
	EnrichSucceeded EnrichStatus = "succeeded"
	EnrichFailed    EnrichStatus = "failed"
)

// FileCategory is the coarse classification of a generic file.
type FileCategory string

const (
	CategoryPDF          FileCategory = "pdf"
	CategoryImage        FileCategory = "image"
	CategoryDocument     FileCategory = "document"
	CategorySpreadsheet  FileCategory = "spreadsheet"
	CategoryPresentation FileCategory = "presentation"
	CategoryArchive      FileCategory = "archive"
	CategoryOther        FileCategory = "other"
)

// ImageInfo is the payload of an enriched image.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// AudioInfo is the payload of an enriched voice note. Transcript holds a
// placeholder when transcription failed.
type AudioInfo struct {
	Transcript string
	Encoding   string
}

// FileInfo is the payload of an enriched generic file.
type FileInfo struct {
	Category FileCategory
}

// EnrichedRecord is a classified record augmented with downloaded media data.
// At most one payload is set and it matches Kind: Audio and File are always
// present for their kinds, Image only once the image was downloaded.
type EnrichedRecord struct {
	ClassifiedRecord

	Status        EnrichStatus
	FailureReason string

	ContentType string
	Bytes       int64
	DataURI     string

	Image *ImageInfo
	Audio *AudioInfo
	File  *FileInfo
}

// Succeeded reports whether enrichment completed.
func (r EnrichedRecord) Succeeded() bool {
	return r.Status == EnrichSucceeded
}

// Transcript returns the audio transcript or its placeholder.
func (r EnrichedRecord) Transcript() string {
	if r.Audio == nil {
		return ""
	}

	return r.Audio.Transcript
}

// Category returns the file category, CategoryOther when unknown.
func (r EnrichedRecord) Category() FileCategory {
	if r.File == nil || r.File.Category == "" {
		return CategoryOther
	}

	return r.File.Category
}

// FromText wraps a text record; text needs no enrichment.
func FromText(rec ClassifiedRecord) EnrichedRecord {
	return EnrichedRecord{ClassifiedRecord: rec, Status: EnrichSucceeded}
}
