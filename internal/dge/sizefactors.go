package dge

import (
	"errors"
	"math"

	"github.com/montanaflynn/stats"
)

// EstimateSizeFactors computes one positive scale factor per sample by the
// median-of-ratios method: each gene's geometric mean across samples forms
// a reference profile, and a sample's size factor is the median of its
// count-to-reference ratios. Genes with a zero count in any sample have no
// finite log geometric mean and are excluded from the reference.
//
// counts is gene-major: counts[i][j] is gene i in sample j.
func EstimateSizeFactors(counts [][]float64) ([]float64, error) {
	if len(counts) == 0 {
		return nil, errors.New("size factors: no genes")
	}
	nSamples := len(counts[0])
	if nSamples == 0 {
		return nil, errors.New("size factors: no samples")
	}

	logGeoMean := make([]float64, len(counts))
	usable := make([]bool, len(counts))
	for i, row := range counts {
		sum := 0.0
		ok := true
		for _, v := range row {
			if v <= 0 {
				ok = false
				break
			}
			sum += math.Log(v)
		}
		if ok {
			logGeoMean[i] = sum / float64(nSamples)
			usable[i] = true
		}
	}

	factors := make([]float64, nSamples)
	logRatios := make([]float64, 0, len(counts))
	for j := 0; j < nSamples; j++ {
		logRatios = logRatios[:0]
		for i, row := range counts {
			if usable[i] {
				logRatios = append(logRatios, math.Log(row[j])-logGeoMean[i])
			}
		}
		if len(logRatios) == 0 {
			return nil, errors.New("size factors: no gene has nonzero counts in every sample")
		}
		med, err := stats.Median(logRatios)
		if err != nil {
			return nil, err
		}
		factors[j] = math.Exp(med)
	}

	return factors, nil
}
