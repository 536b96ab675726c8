// Package colmap declares the COLMAP reconstruction chain: seven dependent command line
// stages going from a folder of images to a Poisson surface mesh.
package colmap

import (
	"strconv"

	"github.com/askiada/go-reconstruct/pkg/config"
	"github.com/askiada/go-reconstruct/pkg/pipeline"
)

// Workspace locations, relative to the workspace folder.
const (
	Database    pipeline.PathKey = "database"
	SparseDir   pipeline.PathKey = "sparseDir"
	SparseModel pipeline.PathKey = "sparseModel"
	DenseDir    pipeline.PathKey = "denseDir"
	StereoDir   pipeline.PathKey = "stereoDir"
	DepthMaps   pipeline.PathKey = "depthMaps"
	FusedPly    pipeline.PathKey = "fusedPly"
	MeshedPly   pipeline.PathKey = "meshedPly"
)

// Stage names, in execution order.
const (
	FeatureExtraction    = "feature_extraction"
	ExhaustiveMatching   = "exhaustive_matching"
	SparseReconstruction = "sparse_reconstruction"
	ImageUndistortion    = "image_undistortion"
	DenseReconstruction  = "dense_reconstruction"
	DenseFusion          = "dense_fusion"
	MeshGeneration       = "mesh_generation"
)

// Layout is the workspace layout COLMAP reads and writes.
func Layout() map[pipeline.PathKey]string {
	return map[pipeline.PathKey]string{
		Database:    "database.db",
		SparseDir:   "sparse",
		SparseModel: "sparse/0",
		DenseDir:    "dense",
		StereoDir:   "dense/stereo",
		DepthMaps:   "dense/stereo/depth_maps",
		FusedPly:    "dense/fused.ply",
		MeshedPly:   "dense/meshed.ply",
	}
}

// Options tunes the engine.
type Options struct {
	CameraModel    string
	MaxNumFeatures int
	MapperThreads  int
	GPU            bool
}

// OptionsFrom reads the engine options of cfg, falling back to the defaults for unset ones.
func OptionsFrom(cfg config.Validated) Options {
	def := config.DefaultConfig()
	raw := cfg.Config()
	opts := Options{
		CameraModel:    raw.CameraModel,
		MaxNumFeatures: raw.MaxNumFeatures,
		MapperThreads:  raw.MapperThreads,
		GPU:            raw.GPU,
	}
	if opts.CameraModel == "" {
		opts.CameraModel = def.CameraModel
	}
	if opts.MaxNumFeatures <= 0 {
		opts.MaxNumFeatures = def.MaxNumFeatures
	}
	if opts.MapperThreads <= 0 {
		opts.MapperThreads = def.MapperThreads
	}

	return opts
}

// NewPlan returns the reconstruction chain. The sparse and dense folders are created while
// the workspace is prepared; the mesh is the artifact.
func NewPlan(opts Options) pipeline.Plan {
	return pipeline.Plan{
		Layout:   Layout(),
		Dirs:     []pipeline.PathKey{SparseDir, DenseDir},
		Artifact: MeshedPly,
		Stages: []pipeline.Stage{
			{
				Name:     FeatureExtraction,
				Requires: []pipeline.PathKey{pipeline.PathImages},
				Produces: []pipeline.PathKey{Database},
				Command: func(cfg config.Validated, paths pipeline.DerivedPaths) []string {
					return []string{
						cfg.Engine(), "feature_extractor",
						"--database_path", paths.Path(Database),
						"--image_path", paths.Path(pipeline.PathImages),
						"--ImageReader.camera_model", opts.CameraModel,
						"--SiftExtraction.max_num_features", strconv.Itoa(opts.MaxNumFeatures),
						"--SiftExtraction.use_gpu", flagBool(opts.GPU),
					}
				},
			},
			{
				Name:     ExhaustiveMatching,
				Requires: []pipeline.PathKey{Database},
				Command: func(cfg config.Validated, paths pipeline.DerivedPaths) []string {
					return []string{
						cfg.Engine(), "exhaustive_matcher",
						"--database_path", paths.Path(Database),
						"--SiftMatching.use_gpu", flagBool(opts.GPU),
					}
				},
			},
			{
				Name:     SparseReconstruction,
				Requires: []pipeline.PathKey{Database, pipeline.PathImages, SparseDir},
				Produces: []pipeline.PathKey{SparseModel},
				Command: func(cfg config.Validated, paths pipeline.DerivedPaths) []string {
					return []string{
						cfg.Engine(), "mapper",
						"--database_path", paths.Path(Database),
						"--image_path", paths.Path(pipeline.PathImages),
						"--output_path", paths.Path(SparseDir),
						"--Mapper.num_threads", strconv.Itoa(opts.MapperThreads),
					}
				},
			},
			{
				Name:     ImageUndistortion,
				Requires: []pipeline.PathKey{pipeline.PathImages, SparseModel, DenseDir},
				Produces: []pipeline.PathKey{StereoDir},
				Command: func(cfg config.Validated, paths pipeline.DerivedPaths) []string {
					return []string{
						cfg.Engine(), "image_undistorter",
						"--image_path", paths.Path(pipeline.PathImages),
						"--input_path", paths.Path(SparseModel),
						"--output_path", paths.Path(DenseDir),
						"--output_type", "COLMAP",
					}
				},
			},
			{
				Name:     DenseReconstruction,
				Requires: []pipeline.PathKey{StereoDir},
				Produces: []pipeline.PathKey{DepthMaps},
				Command: func(cfg config.Validated, paths pipeline.DerivedPaths) []string {
					return []string{
						cfg.Engine(), "patch_match_stereo",
						"--workspace_path", paths.Path(DenseDir),
						"--workspace_format", "COLMAP",
						"--PatchMatchStereo.geom_consistency", "true",
					}
				},
			},
			{
				Name:     DenseFusion,
				Requires: []pipeline.PathKey{DepthMaps},
				Produces: []pipeline.PathKey{FusedPly},
				Command: func(cfg config.Validated, paths pipeline.DerivedPaths) []string {
					return []string{
						cfg.Engine(), "stereo_fusion",
						"--workspace_path", paths.Path(DenseDir),
						"--workspace_format", "COLMAP",
						"--input_type", "geometric",
						"--output_path", paths.Path(FusedPly),
					}
				},
			},
			{
				Name:     MeshGeneration,
				Requires: []pipeline.PathKey{FusedPly},
				Produces: []pipeline.PathKey{MeshedPly},
				Command: func(cfg config.Validated, paths pipeline.DerivedPaths) []string {
					return []string{
						cfg.Engine(), "poisson_mesher",
						"--input_path", paths.Path(FusedPly),
						"--output_path", paths.Path(MeshedPly),
						"--PoissonMeshing.trim", "10",
					}
				},
			},
		},
	}
}

// New builds the reconstruction pipeline for cfg.
func New(cfg config.Validated, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	return pipeline.New(cfg, NewPlan(OptionsFrom(cfg)), opts...)
}

func flagBool(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
