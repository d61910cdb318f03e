package hrv_test

import (
	"fmt"

	"github.com/cwbudde/algo-hrv/hrv"
)

func ExampleAnalyzeRR() {
	rr := []float64{800, 780, 790, 810, 805, 795, 785, 800}

	m, err := hrv.AnalyzeRR(rr, hrv.DefaultOptions())
	if err != nil {
		panic(err)
	}

	fmt.Printf("bpm %.1f\n", m.BPM)
	fmt.Printf("sdnn %.1f ms\n", m.SDNN)
	fmt.Printf("rmssd %.1f ms\n", m.RMSSD)
	// Output:
	// bpm 75.4
	// sdnn 10.2 ms
	// rmssd 13.9 ms
}

func ExampleCleanRR() {
	rr := []float64{800, 810, 400, 805, 795}

	clean := hrv.CleanRR(rr, hrv.CleanQuotientFilter, 2)

	fmt.Println(len(clean))
	// Output:
	// 4
}
