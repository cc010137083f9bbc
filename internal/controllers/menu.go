package controllers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/rahul4469/seemenu/internal/middleware"
	"github.com/rahul4469/seemenu/internal/views"
	"github.com/rahul4469/seemenu/internal/widget"
)

// menuFormField is the multipart field carrying the picked photo.
const menuFormField = "menu"

// multipart framing allowance on top of the file limit
const formOverheadBytes = 64 << 10

// MenuController serves the page shell with the upload widget mounted.
type MenuController struct {
	widget         *widget.Widget
	templates      MenuTemplates
	maxUploadBytes int64
	logger         *slog.Logger
}

// MenuTemplates holds the templates for the menu pages.
type MenuTemplates struct {
	Home *views.Template
}

func NewMenuController(w *widget.Widget, templates MenuTemplates, maxUploadBytes int64, logger *slog.Logger) *MenuController {
	return &MenuController{
		widget:         w,
		templates:      templates,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// HomeData holds data for the home page template.
type HomeData struct {
	Heading        string
	Subtitle       string
	Tagline        string
	MaxUploadBytes int64
	Widget         widget.View
}

// GetHome renders the page shell and the widget for the caller's session.
func (c *MenuController) GetHome(w http.ResponseWriter, r *http.Request) {
	view, err := c.widget.View(r.Context(), middleware.MustCurrentSession(r))
	if err != nil {
		c.logger.Error("failed to load widget state", "error", err)
		c.render(w, r, http.StatusInternalServerError, widget.View{}, "Could not load your menu session. Please try again.")
		return
	}
	c.render(w, r, http.StatusOK, view, "")
}

// PostSelect stores the picked photo, its preview, and clears the last result.
func (c *MenuController) PostSelect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadBytes+formOverheadBytes)

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.renderError(w, r, http.StatusRequestEntityTooLarge, c.tooLargeMessage())
			return
		}
		c.renderError(w, r, http.StatusBadRequest, "Please choose a menu photo to upload.")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile(menuFormField)
	if err != nil {
		c.renderError(w, r, http.StatusBadRequest, "Please choose a menu photo to upload.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, c.maxUploadBytes+1))
	if err != nil {
		c.logger.Error("failed to read selected file", "filename", header.Filename, "error", err)
		c.renderError(w, r, http.StatusBadRequest, "Could not read the selected file.")
		return
	}
	if int64(len(data)) > c.maxUploadBytes {
		c.renderError(w, r, http.StatusRequestEntityTooLarge, c.tooLargeMessage())
		return
	}

	err = c.widget.Select(r.Context(), middleware.MustCurrentSession(r), header.Filename, header.Header.Get("Content-Type"), data)
	if errors.Is(err, widget.ErrStoreFull) {
		c.logger.Warn("selected file does not fit the widget store", "filename", header.Filename, "size_bytes", len(data))
		c.renderError(w, r, http.StatusServiceUnavailable, "The server is busy. Please try again in a few minutes.")
		return
	}
	if err != nil {
		c.logger.Error("failed to store selected file", "filename", header.Filename, "error", err)
		c.renderError(w, r, http.StatusInternalServerError, "Could not keep the selected file. Please try again.")
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// PostUpload sends the selected photo for analysis. Without a selected file,
// or with an upload already running, it only redirects back.
func (c *MenuController) PostUpload(w http.ResponseWriter, r *http.Request) {
	_, err := c.widget.Upload(r.Context(), middleware.MustCurrentSession(r))
	switch {
	case err == nil:
	case errors.Is(err, widget.ErrNoFileSelected),
		errors.Is(err, widget.ErrUploadInProgress),
		errors.Is(err, widget.ErrSelectionChanged):
		c.logger.Debug("upload ignored", "reason", err)
	default:
		c.logger.Error("upload could not complete", "error", err)
		c.renderError(w, r, http.StatusInternalServerError, "Could not save the analysis result. Please try again.")
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// renderError shows errMsg above the widget in its current state.
func (c *MenuController) renderError(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	view, err := c.widget.View(r.Context(), middleware.MustCurrentSession(r))
	if err != nil {
		view = widget.View{}
	}
	c.render(w, r, status, view, errMsg)
}

func (c *MenuController) render(w http.ResponseWriter, r *http.Request, status int, view widget.View, errMsg string) {
	data := &views.TemplateData{
		Title:       "SeeMenu - Menu Analyzer",
		Description: "Scan your restaurant menu and discover detailed dish information",
		CSRFField:   csrf.TemplateField(r),
		Error:       errMsg,
		Data: HomeData{
			Heading:        "SeeMenu",
			Subtitle:       "Scan your restaurant menu and discover detailed dish information",
			Tagline:        "Upload a photo of any menu to see dishes, prices, ingredients and allergens",
			MaxUploadBytes: c.maxUploadBytes,
			Widget:         view,
		},
	}
	c.templates.Home.ExecuteHTTPWithStatus(w, r, status, data)
}

func (c *MenuController) tooLargeMessage() string {
	return fmt.Sprintf("The menu photo is too large. The limit is %d MB.", c.maxUploadBytes>>20)
}
