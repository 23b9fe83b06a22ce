// Package catalog loads the static POI list and indexes it for proximity scans.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v4"
	"gopkg.in/yaml.v3"

	"tripsync/pkg/geo"
	"tripsync/pkg/model"
)

// ErrEmpty is returned when a catalog has no POIs.
var ErrEmpty = errors.New("catalog: no points of interest")

// avgEdgeMeters is the average H3 hexagon edge length per resolution.
var avgEdgeMeters = map[int]float64{
	6:  3724.5,
	7:  1406.5,
	8:  531.4,
	9:  200.8,
	10: 75.9,
}

type fileEntry struct {
	ID      string        `yaml:"id"`
	Name    string        `yaml:"name"`
	City    string        `yaml:"city"`
	Country string        `yaml:"country"`
	Lat     float64       `yaml:"lat"`
	Lon     float64       `yaml:"lon"`
	Color   string        `yaml:"color"`
	Events  []model.Event `yaml:"events"`
	Trivia  []string      `yaml:"trivia"`
}

type fileFormat struct {
	POIs []fileEntry `yaml:"pois"`
}

// Catalog is an ordered, read-only POI list. List position is significant:
// it defines the collectible ID and breaks distance ties.
type Catalog struct {
	pois       []model.PointOfInterest
	byID       map[string]int
	resolution int
	cells      map[h3.Cell][]int
}

// Options controls catalog construction.
type Options struct {
	CollectibleBase int
	CellResolution  int // 0 disables the cell index
}

// CollectibleID maps a catalog position to its collectible identifier.
func CollectibleID(base, index int) int {
	return base + index
}

// Load reads a YAML catalog file.
func Load(path string, opts Options) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	pois := make([]model.PointOfInterest, 0, len(f.POIs))
	for _, e := range f.POIs {
		pois = append(pois, model.PointOfInterest{
			ID:          e.ID,
			Coordinate:  geo.Point{Lat: e.Lat, Lon: e.Lon},
			DisplayName: e.Name,
			City:        e.City,
			Country:     e.Country,
			Color:       e.Color,
			Events:      e.Events,
			Trivia:      e.Trivia,
		})
	}
	return New(pois, opts)
}

// New builds a catalog from pois in the given order.
func New(pois []model.PointOfInterest, opts Options) (*Catalog, error) {
	if len(pois) == 0 {
		return nil, ErrEmpty
	}

	c := &Catalog{
		pois:       make([]model.PointOfInterest, len(pois)),
		byID:       make(map[string]int, len(pois)),
		resolution: opts.CellResolution,
	}
	copy(c.pois, pois)

	for i := range c.pois {
		p := &c.pois[i]
		if p.ID == "" {
			return nil, fmt.Errorf("catalog: entry %d has no id", i)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate id %q", p.ID)
		}
		c.byID[p.ID] = i
		p.CollectibleID = CollectibleID(opts.CollectibleBase, i)
	}

	if _, ok := avgEdgeMeters[c.resolution]; ok {
		c.buildIndex()
	} else if c.resolution != 0 {
		slog.Warn("Catalog: unsupported cell resolution, scanning linearly", "resolution", c.resolution)
		c.resolution = 0
	}

	return c, nil
}

func (c *Catalog) buildIndex() {
	cells := make(map[h3.Cell][]int, len(c.pois))
	for i := range c.pois {
		p := c.pois[i].Coordinate
		cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), c.resolution)
		if err != nil {
			slog.Warn("Catalog: cell index disabled", "poi", c.pois[i].ID, "error", err)
			c.resolution = 0
			return
		}
		cells[cell] = append(cells[cell], i)
	}
	c.cells = cells
}

// Len returns the number of POIs.
func (c *Catalog) Len() int { return len(c.pois) }

// At returns the POI at position i.
func (c *Catalog) At(i int) *model.PointOfInterest { return &c.pois[i] }

// Get returns the POI with the given id and its position.
func (c *Catalog) Get(id string) (*model.PointOfInterest, int, bool) {
	i, ok := c.byID[id]
	if !ok {
		return nil, -1, false
	}
	return &c.pois[i], i, true
}

// Within returns every POI no farther than radius meters from p, in catalog order.
func (c *Catalog) Within(p geo.Point, radius float64) []model.NearbyPOI {
	var out []model.NearbyPOI
	for _, i := range c.candidates(p, radius) {
		d := geo.Distance(p, c.pois[i].Coordinate)
		if d <= radius {
			out = append(out, model.NearbyPOI{POI: &c.pois[i], Index: i, Distance: d})
		}
	}
	return out
}

// candidates returns catalog positions worth measuring, ascending.
func (c *Catalog) candidates(p geo.Point, radius float64) []int {
	if c.cells == nil {
		return c.allIndices()
	}

	origin, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), c.resolution)
	if err != nil {
		return c.allIndices()
	}
	k := int(math.Ceil(radius/(avgEdgeMeters[c.resolution]*0.8))) + 1
	disk, err := h3.GridDisk(origin, k)
	if err != nil {
		return c.allIndices()
	}

	var out []int
	for _, cell := range disk {
		out = append(out, c.cells[cell]...)
	}
	sort.Ints(out)
	return out
}

func (c *Catalog) allIndices() []int {
	out := make([]int, len(c.pois))
	for i := range out {
		out[i] = i
	}
	return out
}

// Bounds returns the padded bounding box of all POIs.
func (c *Catalog) Bounds(padMeters float64) orb.Bound {
	pts := make([]geo.Point, len(c.pois))
	for i := range c.pois {
		pts[i] = c.pois[i].Coordinate
	}
	return geo.Bounds(pts, padMeters)
}

// Fingerprint identifies the ordered id list. Reordering the catalog changes
// collectible ids, so a changed fingerprint matters to a persistent ledger.
func (c *Catalog) Fingerprint() string {
	h := sha256.New()
	for i := range c.pois {
		h.Write([]byte(c.pois[i].ID))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
