package models

// Screen names the part of the flow a view shows.
type Screen string

const (
	ScreenUpload  Screen = "upload"
	ScreenPending Screen = "pending"
	ScreenResult  Screen = "result"
	ScreenFailed  Screen = "failed"
)

// Action identifiers offered on the result card.
const (
	ActionDownloadReport = "downloadReport"
	ActionShareResult    = "shareResult"
)

// View is what a client renders for a flow at one point in time.
type View struct {
	SessionID     string           `json:"sessionId" msgpack:"sessionId"`
	Screen        Screen           `json:"screen" msgpack:"screen"`
	Title         string           `json:"title" msgpack:"title"`
	Locale        string           `json:"locale" msgpack:"locale"`
	Flag          string           `json:"flag" msgpack:"flag"`
	Languages     []LanguageOption `json:"languages" msgpack:"languages"`
	Theme         string           `json:"theme" msgpack:"theme"`
	UploadText    string           `json:"uploadText,omitempty" msgpack:"uploadText,omitempty"`
	DropHint      string           `json:"dropHint,omitempty" msgpack:"dropHint,omitempty"`
	Accept        string           `json:"accept,omitempty" msgpack:"accept,omitempty"`
	Files         []FileRow        `json:"files,omitempty" msgpack:"files,omitempty"`
	SubmitLabel   string           `json:"submitLabel" msgpack:"submitLabel"`
	SubmitEnabled bool             `json:"submitEnabled" msgpack:"submitEnabled"`
	Error         string           `json:"error,omitempty" msgpack:"error,omitempty"`
	Notice        string           `json:"notice,omitempty" msgpack:"notice,omitempty"`
	StatusMessage string           `json:"statusMessage,omitempty" msgpack:"statusMessage,omitempty"`
	Result        *ResultCard      `json:"result,omitempty" msgpack:"result,omitempty"`
	FailureReason string           `json:"failureReason,omitempty" msgpack:"failureReason,omitempty"`
	CanStartOver  bool             `json:"canStartOver" msgpack:"canStartOver"`
	Version       uint64           `json:"version" msgpack:"version"`
}

// LanguageOption is one entry in the language selector.
type LanguageOption struct {
	Key  string `json:"key" msgpack:"key"`
	Code string `json:"code" msgpack:"code"`
	Flag string `json:"flag" msgpack:"flag"`
}

// FileRow is one staged file as listed on the upload screen.
type FileRow struct {
	Index     int    `json:"index" msgpack:"index"`
	Name      string `json:"name" msgpack:"name"`
	SizeBytes int64  `json:"sizeBytes" msgpack:"sizeBytes"`
	Label     string `json:"label" msgpack:"label"`
}

// ResultCard is the terminal display of an analysis outcome.
type ResultCard struct {
	Title             string   `json:"title" msgpack:"title"`
	ConfidencePercent int      `json:"confidencePercent" msgpack:"confidencePercent"`
	ConfidenceLabel   string   `json:"confidenceLabel" msgpack:"confidenceLabel"`
	Recommendation    string   `json:"recommendation" msgpack:"recommendation"`
	Actions           []string `json:"actions" msgpack:"actions"`
}
