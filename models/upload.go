package models

// Accepted upload MIME types
const (
	MimeTypePlainText  = "text/plain"
	MimeTypePDF        = "application/pdf"
	MimeTypeLegacyWord = "application/msword"
	MimeTypeModernWord = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// AllowedMimeTypes is the set of upload types the pipeline accepts
var AllowedMimeTypes = map[string]bool{
	MimeTypePlainText:  true,
	MimeTypePDF:        true,
	MimeTypeLegacyWord: true,
	MimeTypeModernWord: true,
}

// UploadedDocument represents one uploaded bill file. Content is a base64
// data URL ("data:<mime>;base64,<payload>") as sent by the browser.
type UploadedDocument struct {
	FileName string `json:"fileName"`
	Content  string `json:"fileContent"`
	MimeType string `json:"fileType"`
}
