package collection

import (
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/graph"
	"github.com/dgketchum/openet-ptjpl/internal/interpolate"
)

// DefaultInterpDays is the default bracket search radius in days.
const DefaultInterpDays = 32

var resampleModes = []string{"nearest", "bilinear", "bicubic"}

type interpConfig struct {
	variables []string
	varsSet   bool
	interval  string
	dates     []string
	method    string
	days      int
	useJoins  bool
	source    string
	band      string
	resample  string
	factor    float64
	factorSet bool
}

// InterpolateOption customizes one Interpolate call.
type InterpolateOption func(*interpConfig)

// WithInterpVariables overrides the request variables.
func WithInterpVariables(vars ...string) InterpolateOption {
	return func(c *interpConfig) {
		c.variables = append([]string{}, vars...)
		c.varsSet = true
	}
}

// WithTInterval selects daily, monthly or custom output.
func WithTInterval(interval string) InterpolateOption {
	return func(c *interpConfig) { c.interval = interval }
}

// WithCustomDates sets the YYYY-MM-DD targets of a custom interval.
func WithCustomDates(dates ...string) InterpolateOption {
	return func(c *interpConfig) { c.dates = append([]string{}, dates...) }
}

// WithInterpMethod selects the interpolation method.
func WithInterpMethod(method string) InterpolateOption {
	return func(c *interpConfig) { c.method = method }
}

// WithInterpDays sets the bracket search radius in days.
func WithInterpDays(days int) InterpolateOption {
	return func(c *interpConfig) { c.days = days }
}

// WithUseJoins finds brackets with joins instead of per-target filters.
func WithUseJoins(use bool) InterpolateOption {
	return func(c *interpConfig) { c.useJoins = use }
}

// WithInterpSource sets the reference ET collection.
func WithInterpSource(source string) InterpolateOption {
	return func(c *interpConfig) { c.source = source }
}

// WithInterpBand sets the reference ET band.
func WithInterpBand(band string) InterpolateOption {
	return func(c *interpConfig) { c.band = band }
}

// WithInterpResample sets the reference ET resampling kernel.
func WithInterpResample(mode string) InterpolateOption {
	return func(c *interpConfig) { c.resample = mode }
}

// WithInterpFactor scales the reference ET.
func WithInterpFactor(factor float64) InterpolateOption {
	return func(c *interpConfig) {
		c.factor = factor
		c.factorSet = true
	}
}

// Interpolate returns the interpolated series for the request window.
func (c *Collection) Interpolate(opts ...InterpolateOption) (graph.Collection, error) {
	p, err := c.interpParams(opts...)
	if err != nil {
		return graph.Collection{}, err
	}
	coll, err := interpolate.Build(p, c.build)
	if err != nil {
		return graph.Collection{}, eris.Wrap(err, "collection: interpolate")
	}
	return coll, nil
}

// InterpolationTargets returns the output dates Interpolate would produce:
// month starts for a monthly interval, days otherwise.
func (c *Collection) InterpolationTargets(opts ...InterpolateOption) (dateutil.Grid, error) {
	p, err := c.interpParams(opts...)
	if err != nil {
		return nil, err
	}
	if p.Interval == interpolate.IntervalMonthly {
		return dateutil.MonthlyGrid(p.Window), nil
	}
	return interpolate.Targets(p), nil
}

func (c *Collection) interpParams(opts ...InterpolateOption) (interpolate.Params, error) {
	cfg := interpConfig{
		interval: interpolate.IntervalCustom,
		method:   interpolate.MethodLinear,
		days:     DefaultInterpDays,
		source:   c.modelArgs.ETReferenceSource,
		band:     c.modelArgs.ETReferenceBand,
		resample: c.modelArgs.ETReferenceResample,
		factor:   c.modelArgs.ETReferenceFactor,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.resample == "" {
		cfg.resample = "nearest"
	}
	if !cfg.factorSet && cfg.factor == 0 {
		cfg.factor = 1
	}

	vars := c.variables
	if cfg.varsSet {
		vars = cfg.variables
	}
	invalid := func(format string, args ...any) (interpolate.Params, error) {
		return interpolate.Params{}, eris.Wrapf(ErrInvalidValue, "collection: "+format, args...)
	}

	switch {
	case len(vars) == 0:
		return invalid("interpolate needs at least one variable")
	case cfg.interval != interpolate.IntervalDaily && cfg.interval != interpolate.IntervalMonthly && cfg.interval != interpolate.IntervalCustom:
		return invalid("unsupported t_interval %q", cfg.interval)
	case cfg.method != interpolate.MethodLinear:
		return invalid("unsupported interp_method %q", cfg.method)
	case cfg.days <= 0:
		return invalid("interp_days must be positive, got %d", cfg.days)
	case !contains(resampleModes, cfg.resample):
		return invalid("unsupported interp_resample %q", cfg.resample)
	case cfg.source == "":
		return invalid("interp_source is not set")
	case cfg.band == "":
		return invalid("interp_band is not set")
	case math.IsNaN(cfg.factor) || cfg.factor <= 0:
		return invalid("interp_factor must be positive, got %v", cfg.factor)
	}
	if err := checkVariables(vars, interpolate.Variables); err != nil {
		return interpolate.Params{}, err
	}

	p := interpolate.Params{
		Variables: append([]string{}, vars...),
		Interval:  cfg.interval,
		Window:    c.window,
		Days:      cfg.days,
		UseJoins:  cfg.useJoins,
		Source:    cfg.source,
		Band:      cfg.band,
		Resample:  cfg.resample,
		Factor:    cfg.factor,
	}
	if cfg.interval == interpolate.IntervalCustom {
		dates := []time.Time{c.window.Start}
		if len(cfg.dates) > 0 {
			dates = dates[:0]
			for _, s := range cfg.dates {
				d, err := dateutil.ParseDate(s)
				if err != nil {
					return invalid("custom date: %v", err)
				}
				dates = append(dates, d)
			}
		}
		p.Dates = dateutil.CustomGrid(dates)
	}
	return p, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
