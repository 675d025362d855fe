package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/render"

	"github.com/kacperjurak/gocvcore"
	"github.com/kacperjurak/gocvcore/internal/utils"
	"github.com/kacperjurak/gocvcore/internal/workbook"
	"github.com/kacperjurak/gocvcore/pkg/config"
	"github.com/kacperjurak/gocvcore/pkg/models"
	"github.com/kacperjurak/gocvcore/pkg/palette"
	"github.com/kacperjurak/gocvcore/pkg/plot"
)

// CVHandler processes and plots uploaded workbooks. Uploads are never cached.
type CVHandler struct {
	config *config.Config
	logger *slog.Logger
}

// NewCVHandler creates a new CV handler
func NewCVHandler(cfg *config.Config, logger *slog.Logger) *CVHandler {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CVHandler{config: cfg, logger: logger}
}

// upload is a parsed multipart request: the workbook plus its processing parameters.
type upload struct {
	workbook *workbook.Workbook
	options  gocvcore.Options
}

// Process answers POST /cv/process with the dataset summary. full=true adds every series.
func (h *CVHandler) Process(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(r)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	ds, err := gocvcore.Process(up.workbook.Frame, up.options)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusInternalServerError)
		return
	}

	sum := models.Summarize(utils.RequestID(r.Context()), up.workbook.Label, ds)
	if full, _ := strconv.ParseBool(r.FormValue("full")); full {
		sum.Dataset = ds
	}

	h.logger.Info("processed upload",
		slog.String("file", up.workbook.Path),
		slog.String("sheet", up.workbook.Sheet),
		slog.Int("cycles", len(ds.Cycles)),
		slog.Int("rows", ds.Rows()),
	)
	render.JSON(w, r, sum)
}

// Plot answers POST /cv/plot with a PNG of the requested cycles.
func (h *CVHandler) Plot(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(r)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	d := h.config.Defaults

	cycles, err := gocvcore.ParseCycleRange(formOr(r, "cycles", d.Cycles))
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}
	colors, err := palette.Resolve(
		formOr(r, "palette", d.Palette),
		h.config.Palettes,
		[2]string{formOr(r, "custom_start", d.CustomStart), formOr(r, "custom_end", d.CustomEnd)},
		len(cycles),
	)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusBadRequest)
		return
	}

	ds, err := gocvcore.Process(up.workbook.Frame, up.options)
	if err != nil {
		writeError(w, r, h.logger, err, http.StatusInternalServerError)
		return
	}

	opts := d.PlotOptions()
	opts.Cycles = cycles
	opts.Colors = colors
	opts.Label = formOr(r, "label", up.workbook.Label)
	opts.Logger = h.logger

	var buf bytes.Buffer
	if err := plot.RenderCV(&buf, ds, opts); err != nil {
		writeError(w, r, h.logger, err, http.StatusInternalServerError)
		return
	}

	name := plot.OutputName(d.FilenameTemplate, opts.Label)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *CVHandler) readUpload(r *http.Request) (*upload, error) {
	if err := r.ParseMultipartForm(h.config.Server.MaxUploadMB << 20); err != nil {
		return nil, badRequest(err, "form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, badRequest(err, "file")
	}
	defer file.Close()

	d := h.config.Defaults
	opts := d.ProcessOptions(0)

	if v := r.FormValue("window"); v != "" {
		window, err := strconv.Atoi(v)
		if err != nil {
			return nil, badRequest(err, "window")
		}
		opts.Window = window
	}
	if v := r.FormValue("policy"); v != "" {
		policy, err := gocvcore.ParsePolicy(v)
		if err != nil {
			return nil, err
		}
		opts.Policy = policy
	}
	if err := gocvcore.ValidateWindow(opts.Window, opts.Policy); err != nil {
		return nil, err
	}

	wbOpts, err := d.WorkbookOptions()
	if err != nil {
		return nil, err
	}
	wbOpts.Logger = h.logger
	if v := r.FormValue("mass"); v != "" {
		mass, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, badRequest(err, "mass")
		}
		if !(mass > 0) || math.IsInf(mass, 0) {
			return nil, badRequest(errors.New("must be positive"), "mass")
		}
		wbOpts.MassOverride = mass
	}

	wb, err := workbook.Read(file, header.Filename, wbOpts)
	if err != nil {
		return nil, err
	}
	opts.Mass = wb.Mass
	return &upload{workbook: wb, options: opts}, nil
}

func formOr(r *http.Request, key, fallback string) string {
	if v := strings.TrimSpace(r.FormValue(key)); v != "" {
		return v
	}
	return fallback
}
