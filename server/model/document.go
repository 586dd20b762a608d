package model

// Authentication contexts carried by an AuthRequiredMessage.
const (
	AuthContextLoad    = "load"
	AuthContextEditing = "editing"
	AuthContextSave    = "save"
	AuthContextImage   = "image"
)

// AuthRequiredMessage is the body of every 401 answer of the document rpc.
type AuthRequiredMessage struct {
	Context string `json:"context"`
	URL     string `json:"url"`
}

type OpenDocumentRequest struct {
	URL      string `json:"url"`
	UserName string `json:"user_name"`
}

type OpenDocumentResponse struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Content  string `json:"content"`
	ReadOnly bool   `json:"read_only"`
}

type SyncDocumentRequest struct {
	Content string `json:"content"`
}

type SyncDocumentResponse struct {
}

type SaveDocumentResponse struct {
}

type CloseDocumentResponse struct {
}
