package ml

import (
	"fmt"
	"math"
	"sort"
)

// Config holds boosting hyperparameters.
type Config struct {
	Trees          int
	Depth          int
	LearningRate   float64
	MinSamplesLeaf int
}

// DefaultConfig mirrors the production training setup: 80 shallow
// trees with the usual shrinkage.
func DefaultConfig() Config {
	return Config{
		Trees:          80,
		Depth:          4,
		LearningRate:   0.1,
		MinSamplesLeaf: 1,
	}
}

// Classifier is a gradient-boosted tree ensemble for binary
// classification with logistic loss. Training is deterministic: no
// subsampling, features scanned in index order.
type Classifier struct {
	bias     float64
	trees    []*node
	shrink   float64
	features int
}

type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	value     float64
	leaf      bool
}

// BalancedWeights assigns each sample the inverse frequency of its
// class, matching the usual balanced scheme. Single-class inputs get
// uniform weights.
func BalancedWeights(y []int) []float64 {
	var pos, neg int
	for _, v := range y {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	w := make([]float64, len(y))
	if pos == 0 || neg == 0 {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	n := float64(len(y))
	wPos := n / (2 * float64(pos))
	wNeg := n / (2 * float64(neg))
	for i, v := range y {
		if v == 1 {
			w[i] = wPos
		} else {
			w[i] = wNeg
		}
	}
	return w
}

// Train fits the ensemble on X (rows of equal width) against binary
// labels y with per-sample weights. Pass nil weights for uniform.
func Train(X [][]float64, y []int, weights []float64, cfg Config) (*Classifier, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("training set shape mismatch: %d rows, %d labels", len(X), len(y))
	}
	if cfg.Trees <= 0 || cfg.Depth <= 0 || cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("invalid boosting config: %+v", cfg)
	}
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = 1
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has width %d, want %d", i, len(row), width)
		}
	}
	if weights == nil {
		weights = make([]float64, len(y))
		for i := range weights {
			weights[i] = 1
		}
	}

	// bias is the weighted log odds
	var sumW, sumWY float64
	for i, w := range weights {
		sumW += w
		sumWY += w * float64(y[i])
	}
	p := clampProb(sumWY / sumW)
	c := &Classifier{
		bias:     math.Log(p / (1 - p)),
		shrink:   cfg.LearningRate,
		features: width,
	}

	scores := make([]float64, len(y))
	for i := range scores {
		scores[i] = c.bias
	}
	residuals := make([]float64, len(y))
	hessians := make([]float64, len(y))
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}

	for t := 0; t < cfg.Trees; t++ {
		for i := range scores {
			pi := sigmoid(scores[i])
			residuals[i] = float64(y[i]) - pi
			hessians[i] = pi * (1 - pi)
		}
		root := buildNode(X, residuals, hessians, weights, idx, cfg.Depth, cfg.MinSamplesLeaf)
		c.trees = append(c.trees, root)
		for i, row := range X {
			scores[i] += c.shrink * root.predict(row)
		}
	}
	return c, nil
}

// PredictProba returns the probability of the positive class.
func (c *Classifier) PredictProba(x []float64) (float64, error) {
	if len(x) != c.features {
		return 0, fmt.Errorf("feature width %d, want %d", len(x), c.features)
	}
	score := c.bias
	for _, t := range c.trees {
		score += c.shrink * t.predict(x)
	}
	return sigmoid(score), nil
}

func (n *node) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// buildNode grows a regression tree on the gradient residuals using
// weighted squared-error splits and Newton leaf values.
func buildNode(X [][]float64, residuals, hessians, weights []float64, idx []int, depth, minLeaf int) *node {
	if depth == 0 || len(idx) < 2*minLeaf {
		return leafNode(residuals, hessians, weights, idx)
	}

	feature, threshold, ok := bestSplit(X, residuals, weights, idx, minLeaf)
	if !ok {
		return leafNode(residuals, hessians, weights, idx)
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &node{
		feature:   feature,
		threshold: threshold,
		left:      buildNode(X, residuals, hessians, weights, left, depth-1, minLeaf),
		right:     buildNode(X, residuals, hessians, weights, right, depth-1, minLeaf),
	}
}

func leafNode(residuals, hessians, weights []float64, idx []int) *node {
	var num, den float64
	for _, i := range idx {
		num += weights[i] * residuals[i]
		den += weights[i] * hessians[i]
	}
	v := 0.0
	if den > 1e-12 {
		v = num / den
	}
	return &node{leaf: true, value: v}
}

// bestSplit scans every feature for the threshold with the largest
// weighted variance reduction. Ties resolve to the first feature and
// lowest threshold seen, keeping training deterministic.
func bestSplit(X [][]float64, residuals, weights []float64, idx []int, minLeaf int) (int, float64, bool) {
	var totalW, totalWR float64
	for _, i := range idx {
		totalW += weights[i]
		totalWR += weights[i] * residuals[i]
	}
	if totalW == 0 {
		return 0, 0, false
	}
	baseScore := totalWR * totalWR / totalW

	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, len(idx))
	nFeatures := len(X[idx[0]])
	for f := 0; f < nFeatures; f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var leftW, leftWR float64
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			leftW += weights[i]
			leftWR += weights[i] * residuals[i]

			// can not split between equal values
			if X[order[k]][f] == X[order[k+1]][f] {
				continue
			}
			if k+1 < minLeaf || len(order)-k-1 < minLeaf {
				continue
			}
			rightW := totalW - leftW
			rightWR := totalWR - leftWR
			if leftW == 0 || rightW == 0 {
				continue
			}
			gain := leftWR*leftWR/leftW + rightWR*rightWR/rightW - baseScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (X[order[k]][f] + X[order[k+1]][f]) / 2
			}
		}
	}
	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clampProb(p float64) float64 {
	const eps = 1e-6
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}
