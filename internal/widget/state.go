package widget

import (
	"encoding/base64"
	"mime"
	"strings"
	"time"

	"github.com/rahul4469/seemenu/internal/models"
)

const (
	defaultFilename    = "upload"
	defaultContentType = "application/octet-stream"
)

// SelectedFile is the photo picked by the user, held until the next
// selection replaces it. Data is never part of the encoded state record;
// stores that serialise state keep the bytes under their own key.
type SelectedFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Data        []byte `json:"-"`
}

// NewSelectedFile normalises the name and declared media type. Any file is
// accepted; the picker's image/* filter is only a hint.
func NewSelectedFile(name, contentType string, data []byte) *SelectedFile {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultFilename
	}
	return &SelectedFile{
		Name:        name,
		ContentType: normalizeContentType(contentType),
		Size:        len(data),
		Data:        data,
	}
}

func normalizeContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		return defaultContentType
	}
	return mediaType
}

// PreviewDataURL encodes the file as a data URL for the <img> preview.
func PreviewDataURL(f *SelectedFile) string {
	return "data:" + f.ContentType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// State is everything the widget knows about one browser session.
// Selection counts file selections; an upload only writes its result back
// while the selection it started from is still current.
type State struct {
	File         *SelectedFile          `json:"file,omitempty"`
	Selection    int64                  `json:"selection"`
	Loading      bool                   `json:"loading"`
	LoadingSince time.Time              `json:"loading_since,omitempty"`
	Result       *models.AnalysisResult `json:"result,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// size is the number of payload bytes the state holds.
func (s *State) size() int64 {
	if s.File == nil {
		return 0
	}
	return int64(len(s.File.Data))
}

// View is the read-only snapshot templates render from.
type View struct {
	Filename    string
	Preview     string
	Loading     bool
	CanUpload   bool
	ShowPreview bool
	ShowResult  bool
	HasDishes   bool
	Result      *models.AnalysisResult
}

// View derives the rendering flags from s. The preview is encoded here, on
// render, so the state never holds a second copy of the photo.
func (s *State) View() View {
	v := View{
		Loading:    s.Loading,
		CanUpload:  s.File != nil && !s.Loading,
		ShowResult: s.Result != nil,
		HasDishes:  s.Result.HasDishes(),
		Result:     s.Result,
	}
	if s.File != nil {
		v.Filename = s.File.Name
		v.Preview = PreviewDataURL(s.File)
		v.ShowPreview = true
	}
	return v
}
