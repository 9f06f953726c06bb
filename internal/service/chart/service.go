package chart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/zhouzirui/csvsage/backend/internal/analysis/tabular"
	"github.com/zhouzirui/csvsage/backend/pkg/log"
)

var ErrPlotNotFound = errors.New("plot not found")

const histogramBins = 16

// Source is the dataset view needed to draw plots.
type Source interface {
	NumericColumns() []string
	NumericValues(name string) ([]float64, bool)
	Correlate() map[string]map[string]tabular.Float
}

// Service renders dataset plots as PNG files under a directory.
type Service struct {
	dir string
}

// NewService creates dir when missing.
func NewService(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plots dir: %w", err)
	}
	return &Service{dir: dir}, nil
}

// Render draws the correlation heatmap and a histogram of the first numeric
// column, returning the file names written. Datasets without numeric columns
// produce no plots.
func (s *Service) Render(ctx context.Context, sessionID string, src Source) ([]string, error) {
	numeric := src.NumericColumns()
	if len(numeric) == 0 {
		return []string{}, nil
	}

	names := make([]string, 0, 2)

	heatmap := sessionID + "_heatmap.png"
	if err := s.save(heatmap, correlationPlot(numeric, src.Correlate()), 8*vg.Inch, 6*vg.Inch); err != nil {
		return nil, err
	}
	names = append(names, heatmap)

	values, _ := src.NumericValues(numeric[0])
	if len(values) > 0 {
		p, err := histogramPlot(numeric[0], values)
		if err != nil {
			return nil, err
		}
		hist := sessionID + "_hist.png"
		if err := s.save(hist, p, 6*vg.Inch, 4*vg.Inch); err != nil {
			return nil, err
		}
		names = append(names, hist)
	}

	log.FromCtx(ctx).Info().Str("session_id", sessionID).Strs("plots", names).Msg("plots rendered")
	return names, nil
}

// Path resolves a plot file name produced by Render.
func (s *Service) Path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || !strings.HasSuffix(name, ".png") {
		return "", ErrPlotNotFound
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrPlotNotFound
	}
	return path, nil
}

func (s *Service) save(name string, p *plot.Plot, w, h vg.Length) error {
	canvas := vgimg.New(w, h)
	p.Draw(draw.New(canvas))

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

// correlationGrid exposes a correlation table as plotter.GridXYZ. Undefined
// coefficients are drawn as zero.
type correlationGrid struct {
	names  []string
	values map[string]map[string]tabular.Float
}

func (g correlationGrid) Dims() (c, r int) { return len(g.names), len(g.names) }

func (g correlationGrid) Z(c, r int) float64 {
	v := g.values[g.names[r]][g.names[c]]
	if !v.Valid() {
		return 0
	}
	return float64(v)
}

func (g correlationGrid) X(c int) float64 { return float64(c) }

func (g correlationGrid) Y(r int) float64 { return float64(r) }

func correlationPlot(names []string, values map[string]map[string]tabular.Float) *plot.Plot {
	p := plot.New()
	p.Title.Text = "Correlation"

	heat := plotter.NewHeatMap(correlationGrid{names: names, values: values}, palette.Heat(12, 1))
	heat.Min, heat.Max = -1, 1
	p.Add(heat)
	p.NominalX(names...)
	p.NominalY(names...)
	return p
}

func histogramPlot(column string, values []float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = column
	p.X.Label.Text = column
	p.Y.Label.Text = "Count"

	hist, err := plotter.NewHist(plotter.Values(values), histogramBins)
	if err != nil {
		return nil, fmt.Errorf("failed to bin %s: %w", column, err)
	}
	p.Add(hist)
	return p, nil
}
