package casino

import (
	"fmt"
	"math"

	"github.com/Sharedvaluevending/RevQR-sub006/internal/features/rewards"
)

// WheelRender — параметры анимации колеса. Клиент определяет приз
// только по FinalAngle, поэтому угол передаётся без округления.
type WheelRender struct {
	SliceCount    int     `json:"slice_count"`
	PointerOffset float64 `json:"pointer_offset"`
	Rotations     int     `json:"rotations"`
	TargetAngle   float64 `json:"target_angle"`
	FinalAngle    float64 `json:"final_angle"`
}

// Wheel вычисляет угол остановки колеса.
type Wheel struct {
	PointerOffset float64 // Положение указателя, градусы (по умолчанию 90)
	MinRotations  int
	MaxRotations  int
}

// TargetAngle — угол, при котором центр сектора index окажется под указателем:
// (index·slice + slice/2 − pointer) mod 360.
func TargetAngle(index, sliceCount int, pointer float64) float64 {
	slice := 360 / float64(sliceCount)
	return normalizeAngle(float64(index)*slice + slice/2 - pointer)
}

// SliceAt — обратная функция: какой сектор показывает колесо,
// остановившееся на angle. floor(((angle mod 360) + pointer) / slice) mod N.
func SliceAt(angle float64, sliceCount int, pointer float64) int {
	slice := 360 / float64(sliceCount)
	i := int(math.Floor((normalizeAngle(angle) + pointer) / slice))
	return ((i % sliceCount) + sliceCount) % sliceCount
}

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// Render строит угол для выбранного сектора и проверяет, что клиент
// увидит именно его.
func (w Wheel) Render(index, sliceCount int, src rewards.Source) (WheelRender, error) {
	if sliceCount <= 0 || index < 0 || index >= sliceCount {
		return WheelRender{}, fmt.Errorf("сектор %d вне колеса из %d", index, sliceCount)
	}

	k := w.MinRotations
	if span := w.MaxRotations - w.MinRotations; span > 0 {
		k += int(src.Int64N(int64(span + 1)))
	}

	target := TargetAngle(index, sliceCount, w.PointerOffset)
	r := WheelRender{
		SliceCount:    sliceCount,
		PointerOffset: w.PointerOffset,
		Rotations:     k,
		TargetAngle:   target,
		FinalAngle:    target + 360*float64(k),
	}

	if got := SliceAt(r.FinalAngle, sliceCount, w.PointerOffset); got != index {
		return WheelRender{}, fmt.Errorf("рассинхронизация колеса: угол %.6f показывает %d вместо %d", r.FinalAngle, got, index)
	}
	return r, nil
}
