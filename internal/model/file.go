package model

// A ChunkLocation records one transport message and how many chunk
// attachments it carries.
type ChunkLocation struct {
	MessageID string `json:"message_id"`
	Chunks    int    `json:"chunks"`
}

// A File represents a fully committed upload. The chunk bytes live on the
// transport; this record only maps the ident to their locations.
//
// Attachments is the flattened, emission-ordered list of chunk URLs. It
// duplicates the information of Messages so a download can fetch chunks
// without decoding the descriptor layout again.
type File struct {
	Base `json:",inline" storm:"inline"`

	OwnerID string `json:"owner_id" storm:"index"`

	Ident       string          `json:"ident" storm:"unique"`
	Filename    string          `json:"filename"`
	MimeType    string          `json:"mime_type"`
	Size        int64           `json:"size"`
	Views       int64           `json:"views"`
	Messages    []ChunkLocation `json:"messages"`
	Attachments []string        `json:"attachments"`
}
