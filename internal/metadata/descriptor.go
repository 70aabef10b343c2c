// Package metadata implements the encrypted object descriptor: the record
// binding an ident to its decryption key and chunk layout. Descriptors are
// stored in the body of the first transport message of an object and are the
// sole source of truth for decrypting and reordering its chunks.
package metadata

// A Descriptor describes one stored object. Chunks maps a transport message
// id to the number of chunk attachments it carries; the sum of its values is
// the total chunk count of the object. Encryption holds the per-object key
// material as "keyhex.ivhex".
type Descriptor struct {
	Ident      string         `json:"ident"`
	Filename   string         `json:"filename"`
	MimeType   string         `json:"mimeType"`
	Size       int64          `json:"size"`
	Compressed bool           `json:"compressed"`
	Encryption string         `json:"encryption"`
	Chunks     map[string]int `json:"chunks"`
}
