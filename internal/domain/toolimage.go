package domain

// ToolImageResult is the JSON envelope a built-in tool returns when its
// result is primarily an image (e.g. generate_qrcode's rendered code): the
// Agent Runtime's tool executor recognizes this shape and appends a real
// Image Part to the tool message, alongside the ordinary ToolResult Part,
// so a vision-capable model sees the image directly instead of just a
// textual confirmation.
type ToolImageResult struct {
	Note        string `json:"note"`
	MimeType    string `json:"mime_type"`
	ImageBase64 string `json:"image_base64"`
}
