package village

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sevaatlas/geo"
)

// ErrNameRequired signals a resolve call without a village name.
var ErrNameRequired = errors.New("village: name required")

// Default seed point when neither sibling villages nor reference geometry are
// available: Bhadrak town, with a small synthetic bounding box.
const (
	defaultLat     = 21.0545
	defaultLng     = 86.5156
	defaultBBoxPad = 0.01

	defaultDistrict = "Bhadrak"
	defaultState    = "Odisha"
)

// GeometrySource is the slice of geo.Index the resolver needs.
type GeometrySource interface {
	BlockGeometry(block string) (geo.Geometry, bool, error)
}

// Resolver finds or lazily creates village records, seeding coordinates for
// new villages from sibling rows, the reference dataset, or the district
// default point, in that order.
type Resolver struct {
	repo Repository
	geo  GeometrySource
	log  *zap.Logger
}

func NewResolver(repo Repository, source GeometrySource, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{repo: repo, geo: source, log: log}
}

// Resolve implements the lookup-then-create contract. An explicit id wins and
// its block is authoritative over blockHint. Creation is idempotent per
// (name, block): losing the insert race re-fetches the winner's row, so two
// concurrent calls with identical arguments yield the same village id.
func (r *Resolver) Resolve(ctx context.Context, name, blockHint string, explicitID *int64) (Village, error) {
	if explicitID != nil && *explicitID > 0 {
		v, err := r.repo.GetByID(ctx, *explicitID)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Village{}, err
		}
		// Stale id: fall through to name-based resolution.
		r.log.Warn("village id not found, resolving by name",
			zap.Int64("village_id", *explicitID),
			zap.String("name", name))
	}

	name = strings.TrimSpace(name)
	block := strings.TrimSpace(blockHint)
	if name == "" {
		return Village{}, ErrNameRequired
	}

	v, err := r.repo.GetByNameBlock(ctx, name, block)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Village{}, err
	}

	geom, err := r.seedGeometry(ctx, block)
	if err != nil {
		return Village{}, err
	}

	created, err := r.repo.Insert(ctx, Village{
		Name:       name,
		Block:      block,
		District:   defaultDistrict,
		State:      defaultState,
		Lat:        geom.Lat,
		Lng:        geom.Lng,
		South:      geom.South,
		West:       geom.West,
		North:      geom.North,
		East:       geom.East,
		ShowPin:    false,
		GeoPending: true,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			// Lost the creation race; the winner's row is authoritative.
			return r.repo.GetByNameBlock(ctx, name, block)
		}
		return Village{}, err
	}

	r.log.Info("created village pending geo-verification",
		zap.Int64("village_id", created.ID),
		zap.String("name", created.Name),
		zap.String("block", created.Block))
	return created, nil
}

// BackfillGeometry re-derives coordinates for a geo-pending village from the
// reference dataset and clears the pending flag on success.
func (r *Resolver) BackfillGeometry(ctx context.Context, id int64) (Village, error) {
	v, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return Village{}, err
	}
	if !v.GeoPending {
		return v, nil
	}

	ref, ok, err := r.geo.BlockGeometry(v.Block)
	if err != nil {
		return Village{}, err
	}
	if !ok {
		return Village{}, fmt.Errorf("village: no reference geometry for block %q", v.Block)
	}

	return r.repo.UpdateGeometry(ctx, id, Geometry{
		Lat:   ref.Lat,
		Lng:   ref.Lng,
		South: ref.South,
		West:  ref.West,
		North: ref.North,
		East:  ref.East,
	}, false)
}

// seedGeometry picks coordinates for a new village.
func (r *Resolver) seedGeometry(ctx context.Context, block string) (Geometry, error) {
	siblings, err := r.repo.ListByBlock(ctx, block)
	if err != nil {
		return Geometry{}, err
	}
	if len(siblings) > 0 {
		return siblingGeometry(siblings), nil
	}

	ref, ok, err := r.geo.BlockGeometry(block)
	if err != nil {
		return Geometry{}, err
	}
	if ok {
		return Geometry{
			Lat:   ref.Lat,
			Lng:   ref.Lng,
			South: ref.South,
			West:  ref.West,
			North: ref.North,
			East:  ref.East,
		}, nil
	}

	return Geometry{
		Lat:   defaultLat,
		Lng:   defaultLng,
		South: defaultLat - defaultBBoxPad,
		West:  defaultLng - defaultBBoxPad,
		North: defaultLat + defaultBBoxPad,
		East:  defaultLng + defaultBBoxPad,
	}, nil
}

// siblingGeometry is the arithmetic mean of the block's existing centroids
// and the union of their bounding boxes.
func siblingGeometry(siblings []Village) Geometry {
	g := Geometry{
		South: siblings[0].South,
		West:  siblings[0].West,
		North: siblings[0].North,
		East:  siblings[0].East,
	}

	for _, s := range siblings {
		g.Lat += s.Lat
		g.Lng += s.Lng
		if s.South < g.South {
			g.South = s.South
		}
		if s.West < g.West {
			g.West = s.West
		}
		if s.North > g.North {
			g.North = s.North
		}
		if s.East > g.East {
			g.East = s.East
		}
	}
	g.Lat /= float64(len(siblings))
	g.Lng /= float64(len(siblings))
	return g
}
