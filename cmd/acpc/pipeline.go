package main

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"acpctool/pkg/acpc"
	"acpctool/pkg/config"
	"acpctool/pkg/markups"
	"acpctool/pkg/transformio"
)

// pipeline loads landmarks, computes the transform and writes the outputs
// named in the configuration.
type pipeline struct {
	cfg    *config.Config
	calc   *acpc.Calculator
	logger *log.Logger
}

func newPipeline(cfg *config.Config, logger *log.Logger) (*pipeline, error) {
	opts, err := cfg.CalculatorOptions()
	if err != nil {
		return nil, err
	}
	calc, err := acpc.NewCalculator(opts)
	if err != nil {
		return nil, err
	}
	return &pipeline{cfg: cfg, calc: calc, logger: logger}, nil
}

// inputs returns the markups files the pipeline reads.
func (p *pipeline) inputs() []string {
	if p.cfg.Input.LandmarksFile != "" {
		return []string{p.cfg.Input.LandmarksFile}
	}
	return []string{p.cfg.Input.LineFile, p.cfg.Input.MidlineFile}
}

// Input roles. Aligned copies are named <role>_acpc.mrk.json whatever the
// input file is called.
const (
	roleLine      = "line"
	roleMidline   = "midline"
	roleLandmarks = "landmarks"
)

type source struct {
	role string
	path string
	doc  *markups.Document
}

type loaded struct {
	landmarks acpc.Landmarks
	sources   []source
}

func (p *pipeline) load() (*loaded, error) {
	in := p.cfg.Input
	out := &loaded{}

	if in.LandmarksFile != "" {
		doc, err := markups.Load(in.LandmarksFile)
		if err != nil {
			return nil, err
		}
		m, err := doc.First(markups.TypeFiducial)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.LandmarksFile, err)
		}
		out.landmarks, err = markups.LandmarksByLabel(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.LandmarksFile, err)
		}
		out.sources = []source{{roleLandmarks, in.LandmarksFile, doc}}
		return out, nil
	}

	if in.LineFile == "" || in.MidlineFile == "" {
		return nil, fmt.Errorf("an AC-PC line and a midline point file are required")
	}
	lineDoc, err := markups.Load(in.LineFile)
	if err != nil {
		return nil, err
	}
	line, err := lineDoc.First(markups.TypeLine)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.LineFile, err)
	}
	midDoc, err := markups.Load(in.MidlineFile)
	if err != nil {
		return nil, err
	}
	mid, err := midDoc.First(markups.TypeFiducial)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.MidlineFile, err)
	}
	out.landmarks, err = markups.Landmarks(line, mid, p.calc.Options().Tolerance)
	if err != nil {
		return nil, err
	}
	out.sources = []source{
		{roleLine, in.LineFile, lineDoc},
		{roleMidline, in.MidlineFile, midDoc},
	}
	return out, nil
}

// run performs one full computation and export.
func (p *pipeline) run() (*acpc.Transform, error) {
	in, err := p.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load landmarks: %w", err)
	}
	p.logger.Debug("landmarks",
		"ac", in.landmarks.AC, "pc", in.landmarks.PC, "ms", in.landmarks.MS)

	t, err := p.calc.Compute(in.landmarks)
	if err != nil {
		return nil, fmt.Errorf("failed to compute AC-PC transform: %w", err)
	}

	out := p.cfg.Output
	if out.TransformFile != "" {
		if err := transformio.SaveITK(out.TransformFile, t); err != nil {
			return nil, err
		}
		p.logger.Info("wrote transform", "file", out.TransformFile)
	}
	if out.ReportFile != "" {
		rep := transformio.NewReport(t, &in.landmarks, p.inputs()...)
		if err := transformio.SaveJSON(out.ReportFile, rep); err != nil {
			return nil, err
		}
		p.logger.Info("wrote report", "file", out.ReportFile)
	}
	if out.TransformedDir != "" {
		for _, src := range in.sources {
			dst := filepath.Join(out.TransformedDir, src.role+"_acpc.mrk.json")
			if err := markups.Save(dst, markups.TransformedDocument(src.doc, t)); err != nil {
				return nil, err
			}
			p.logger.Info("wrote aligned markups", "from", src.path, "file", dst)
		}
	}
	return t, nil
}
