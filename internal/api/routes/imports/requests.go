package imports

// URLImportRequest imports a recipe from a webpage or video URL.
type URLImportRequest struct {
	URL      string `json:"url" validate:"required,url"`
	Language string `json:"language" validate:"required,oneof=en de"`
	Reword   bool   `json:"reword"`
	// Optional trim window for video sources, MM:SS or HH:MM:SS. Empty
	// means no bound.
	StartTimestamp string `json:"startTimestamp"`
	EndTimestamp   string `json:"endTimestamp"`
}

// MediaImportRequest imports a recipe from a single uploaded image or PDF.
type MediaImportRequest struct {
	StoragePaths []string `json:"storagePaths" validate:"required,len=1"`
	MediaType    string   `json:"mediaType" validate:"required,oneof=image pdf"`
	Language     string   `json:"language" validate:"required,oneof=en de"`
	Reword       bool     `json:"reword"`
}
