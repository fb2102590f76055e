package domain

import "time"

// CharactersPerPage approximates how many extracted characters make up one
// page when estimating corpus size for retrieval mode selection.
const CharactersPerPage = 1800

// FileStatus is the ingestion lifecycle state of a repository file.
type FileStatus string

// Available file statuses.
const (
	// FileStatusPending means the file is uploaded but not yet processed.
	FileStatusPending FileStatus = "pending"

	// FileStatusProcessing means ingestion is in flight.
	FileStatusProcessing FileStatus = "processing"

	// FileStatusCompleted means segments are embedded and indexed.
	FileStatusCompleted FileStatus = "completed"

	// FileStatusError means ingestion failed; Error holds the message.
	FileStatusError FileStatus = "error"
)

// IsValid returns true if the status is recognised.
func (s FileStatus) IsValid() bool {
	switch s {
	case FileStatusPending, FileStatusProcessing, FileStatusCompleted, FileStatusError:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status will not change again.
func (s FileStatus) IsTerminal() bool {
	return s == FileStatusCompleted || s == FileStatusError
}

// String returns the string representation.
func (s FileStatus) String() string {
	return string(s)
}

// RetrievalMode controls how repository content reaches the model.
type RetrievalMode string

// Available retrieval modes.
const (
	// RetrievalModeAuto picks rag or context based on corpus size.
	RetrievalModeAuto RetrievalMode = "auto"

	// RetrievalModeRAG exposes the knowledge query tool; nothing is inlined.
	RetrievalModeRAG RetrievalMode = "rag"

	// RetrievalModeContext inlines all file content into the instructions.
	RetrievalModeContext RetrievalMode = "context"
)

// IsValid returns true if the mode is recognised.
func (m RetrievalMode) IsValid() bool {
	switch m {
	case RetrievalModeAuto, RetrievalModeRAG, RetrievalModeContext:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m RetrievalMode) String() string {
	return string(m)
}

// Segment is one embedded chunk of a file's extracted text.
type Segment struct {
	// Text is the chunk content.
	Text string

	// Vector is the chunk's embedding.
	Vector []float32
}

// RepositoryFile is a document uploaded into a knowledge repository.
type RepositoryFile struct {
	// ID is the unique file identifier within its repository.
	ID string

	// Name is the original file name.
	Name string

	// Content is the raw uploaded content.
	Content []byte

	// Status is the ingestion lifecycle state.
	Status FileStatus

	// Progress is 0-100 and never decreases while processing.
	Progress int

	// Text is the extracted plain text, set once extraction succeeds.
	Text string

	// Segments are the embedded chunks, populated on completion in
	// original chunk order.
	Segments []Segment

	// Error is the human-readable failure message for error status.
	Error string

	// UploadedAt is when the file was added.
	UploadedAt time.Time
}

// Repository is a named knowledge corpus owning its files. Deleting a
// repository cascades to its vector documents.
type Repository struct {
	// ID is the unique repository identifier.
	ID string

	// Name is the display name.
	Name string

	// Instructions is optional extra system-prompt text for this corpus.
	Instructions string

	// Embedder is the embedding model identifier used for all files.
	Embedder string

	// Mode is the retrieval mode override (auto by default).
	Mode RetrievalMode

	// Files are the owned documents.
	Files []RepositoryFile

	// CreatedAt is when the repository was created.
	CreatedAt time.Time

	// UpdatedAt is when the repository was last modified.
	UpdatedAt time.Time
}

// TotalCharacters sums extracted text length over all files.
func (r *Repository) TotalCharacters() int {
	total := 0
	for i := range r.Files {
		total += len(r.Files[i].Text)
	}
	return total
}

// TotalPages estimates corpus size in pages.
func (r *Repository) TotalPages() float64 {
	return float64(r.TotalCharacters()) / CharactersPerPage
}

// File returns the file with the given ID, or nil.
func (r *Repository) File(fileID string) *RepositoryFile {
	for i := range r.Files {
		if r.Files[i].ID == fileID {
			return &r.Files[i]
		}
	}
	return nil
}

// KnowledgeHit is one retrieval result from a repository search. The JSON
// shape is what the model receives from the knowledge tool.
type KnowledgeHit struct {
	// FileName is the name of the file the segment came from.
	FileName string `json:"file_name"`

	// FileChunk is the matching segment text.
	FileChunk string `json:"file_chunk"`

	// Similarity is the cosine similarity to the query, in [-1, 1].
	Similarity float64 `json:"similarity"`
}
