// Package drift оценивает уход частоты генератора (старение, прогрев) по последовательным
// отсчётам ошибки окна: линейная регрессия ppb от времени на скользящем окне.
package drift

// DefaultWindow — отсчётов в окне регрессии
const DefaultWindow = 64

// minSamples — меньше отсчётов наклон не считается
const minSamples = 4

// Estimator — скользящая регрессия y = ppb, x = секунды с первого отсчёта.
type Estimator struct {
	xs, ys []float64
	n      int
	idx    int
	t      float64 // время следующего отсчёта
}

// New создаёт оценщик на size отсчётов; size <= 0 — DefaultWindow.
func New(size int) *Estimator {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Estimator{xs: make([]float64, size), ys: make([]float64, size)}
}

// Add добавляет отсчёт ppb, снятый через dt секунд после предыдущего.
func (e *Estimator) Add(ppb, dt float64) {
	if dt <= 0 {
		dt = 1
	}
	if e.n > 0 {
		e.t += dt
	}
	e.xs[e.idx] = e.t
	e.ys[e.idx] = ppb
	e.idx = (e.idx + 1) % len(e.xs)
	if e.n < len(e.xs) {
		e.n++
	}
}

// Len — отсчётов в окне
func (e *Estimator) Len() int { return e.n }

// Mean — среднее ppb по окну.
func (e *Estimator) Mean() float64 {
	if e.n == 0 {
		return 0
	}
	var s float64
	for i := 0; i < e.n; i++ {
		s += e.ys[i]
	}
	return s / float64(e.n)
}

// Slope возвращает наклон в ppb/с; ok=false, пока отсчётов мало.
func (e *Estimator) Slope() (float64, bool) {
	if e.n < minSamples {
		return 0, false
	}
	n := float64(e.n)
	var sumX, sumY, sumXY, sumX2 float64
	for i := 0; i < e.n; i++ {
		sumX += e.xs[i]
		sumY += e.ys[i]
		sumXY += e.xs[i] * e.ys[i]
		sumX2 += e.xs[i] * e.xs[i]
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, false
	}
	return (n*sumXY - sumX*sumY) / denom, true
}

// PerDay — наклон в ppb/сутки.
func (e *Estimator) PerDay() (float64, bool) {
	s, ok := e.Slope()
	return s * 86400, ok
}

// Reset очищает окно
func (e *Estimator) Reset() {
	e.n = 0
	e.idx = 0
	e.t = 0
}
