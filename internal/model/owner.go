package model

// An Owner groups the files uploaded under one account-section key.
// The key is supplied by the identity layer; this server never mints it.
type Owner struct {
	Base `json:",inline" storm:"inline"`

	Key string `json:"key" storm:"unique"`
}
