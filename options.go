package navbake

import "fmt"

// PartitionMethod selects the region partitioning strategy.
type PartitionMethod int

const (
	// PartitionWatershed builds a distance field first. Best region
	// quality, slowest.
	PartitionWatershed PartitionMethod = iota
	// PartitionMonotone partitions in a single sweep. Fastest, but
	// regions can be long and thin.
	PartitionMonotone
	// PartitionLayer produces layered regions for overlapping walkable
	// surfaces.
	PartitionLayer
)

func (p PartitionMethod) String() string {
	switch p {
	case PartitionWatershed:
		return "watershed"
	case PartitionMonotone:
		return "monotone"
	case PartitionLayer:
		return "layer"
	}
	return fmt.Sprintf("PartitionMethod(%d)", int(p))
}

// ParsePartitionMethod maps a config/CLI string to a PartitionMethod.
func ParsePartitionMethod(s string) (PartitionMethod, error) {
	switch s {
	case "watershed":
		return PartitionWatershed, nil
	case "monotone":
		return PartitionMonotone, nil
	case "layer":
		return PartitionLayer, nil
	}
	return 0, fmt.Errorf("navbake: unknown partition method %q", s)
}

// AgentProfile describes the agent the mesh is baked for, in world units.
type AgentProfile struct {
	Height   float32 `yaml:"height"`
	Radius   float32 `yaml:"radius"`
	MaxClimb float32 `yaml:"maxClimb"`
	// MaxSlope is the steepest walkable surface angle in degrees.
	MaxSlope float32 `yaml:"maxSlope"`
}

// BuildOptions tune voxelization and mesh simplification. Values are
// world units unless noted; the build derives voxel-space parameters from
// them. Options are read once at the start of a build.
type BuildOptions struct {
	CellSize   float32 `yaml:"cellSize"`
	CellHeight float32 `yaml:"cellHeight"`
	// MaxEdgeLen limits contour edge length, world units.
	MaxEdgeLen             float32 `yaml:"maxEdgeLen"`
	MaxSimplificationError float32 `yaml:"maxSimplificationError"`
	// RegionMinDimension is the side length, in cells, of the smallest
	// region kept; regions below its square are culled.
	RegionMinDimension   float32 `yaml:"regionMinDimension"`
	RegionMergeDimension float32 `yaml:"regionMergeDimension"`
	// MaxVertsPerPoly above the nav-data format ceiling triggers the
	// soft no-mesh path rather than a build failure.
	MaxVertsPerPoly      int     `yaml:"maxVertsPerPoly"`
	DetailSampleDist     float32 `yaml:"detailSampleDist"`
	DetailSampleMaxError float32 `yaml:"detailSampleMaxError"`

	Partition PartitionMethod `yaml:"-"`
	// PartitionName is the serialized form of Partition.
	PartitionName string `yaml:"partition"`

	Agent AgentProfile `yaml:"agent"`
}

// DefaultBuildOptions returns the conventional baking defaults for a
// human-sized agent.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		CellSize:               0.3,
		CellHeight:             0.2,
		MaxEdgeLen:             12,
		MaxSimplificationError: 1.3,
		RegionMinDimension:     8,
		RegionMergeDimension:   20,
		MaxVertsPerPoly:        6,
		DetailSampleDist:       6,
		DetailSampleMaxError:   1,
		Partition:              PartitionWatershed,
		Agent: AgentProfile{
			Height:   2.0,
			Radius:   0.6,
			MaxClimb: 0.9,
			MaxSlope: 45,
		},
	}
}

// Validate rejects option sets no stage can work with. The vertex-cap
// guard is intentionally not validated here; it is a non-fatal path.
func (o *BuildOptions) Validate() error {
	if o.CellSize <= 0 {
		return fmt.Errorf("navbake: cellSize must be positive, got %g", o.CellSize)
	}
	if o.CellHeight <= 0 {
		return fmt.Errorf("navbake: cellHeight must be positive, got %g", o.CellHeight)
	}
	if o.MaxVertsPerPoly < 3 {
		return fmt.Errorf("navbake: maxVertsPerPoly must be at least 3, got %d", o.MaxVertsPerPoly)
	}
	if o.Agent.Height <= 0 || o.Agent.Radius < 0 || o.Agent.MaxClimb < 0 {
		return fmt.Errorf("navbake: invalid agent profile %+v", o.Agent)
	}
	if o.Agent.MaxSlope < 0 || o.Agent.MaxSlope >= 90 {
		return fmt.Errorf("navbake: agent maxSlope must be in [0, 90), got %g", o.Agent.MaxSlope)
	}
	switch o.Partition {
	case PartitionWatershed, PartitionMonotone, PartitionLayer:
	default:
		return fmt.Errorf("navbake: unknown partition method %d", o.Partition)
	}
	return nil
}
