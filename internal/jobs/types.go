package jobs

const (
	// JobName is the name given to jobs created by the enqueue command.
	// Jobs with other names are processed the same way.
	JobName = "process-document"

	DefaultAttempts = 1
)

// DocumentJobArgs is the JSON payload of a document job.
type DocumentJobArgs struct {
	InputFilePath             string `json:"inputFilePath" validate:"required"`
	ChunkedJSONOutputFilePath string `json:"chunkedJsonOutputFilePath" validate:"required,local_path"`
	MarkdownOutputFilePath    string `json:"markdownOutputFilePath" validate:"required,local_path,nefield=ChunkedJSONOutputFilePath"`
}
