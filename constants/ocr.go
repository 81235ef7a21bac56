package constants

// Tesseract page segmentation modes used by the pipeline.
const (
	PSMSingleBlock = 6  // uniform block of text, used for full-page regions
	PSMSparseText  = 11 // sparse text, no reading order, used for caption blocks
)

// OEMDefault lets tesseract pick legacy or LSTM depending on the traineddata.
const OEMDefault = 3

// DefaultLanguage is the tesseract language model for Brazilian court documents.
const DefaultLanguage = "por"

// DefaultWhitelist restricts recognition to the caption alphabet.
const DefaultWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz" +
	"ÁÂÃÀÇÉÊÍÓÔÕÚáâãàçéêíóôõú" +
	"0123456789 " +
	"°ºª§$():,./-"

// DefaultPageIndex is the zero-based caption page (the second page).
const DefaultPageIndex = 1
