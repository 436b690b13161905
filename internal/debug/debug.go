// Package debug implements the single-journey dry-run mode: one journey for
// one uid, with per-step colored console output, for inspecting a target
// before committing to a full wave or replay run.
package debug

import (
	"context"
	"fmt"
	"strings"

	"github.com/amr9/crossloadgen/internal/httpclient"
	"github.com/amr9/crossloadgen/internal/journey"
	"github.com/amr9/crossloadgen/internal/sessionstore"
	"github.com/amr9/crossloadgen/pkg/models"
)

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
)

// Run executes one journey for uid against cfg's target and prints a
// step-by-step breakdown. It never touches the circuit breaker, aggregator
// or session cache files — a dry run is a standalone probe.
func Run(ctx context.Context, cfg models.Config, uid string) error {
	fmt.Println()
	fmt.Printf("%s%s🛠️  STARTING DEBUG MODE (Dry Run) 🛠️%s\n", colorBold, colorCyan, colorReset)
	fmt.Printf("%srunning one journey for uid=%q against %s%s\n\n", colorDim, uid, cfg.BaseURL, colorReset)

	client := httpclient.New(httpclient.Options{Insecure: cfg.Insecure, Timeout: cfg.Timeout})
	store := sessionstore.New(client, cfg.BaseURL)
	exec := journey.New(client, store, cfg)

	result := exec.Run(ctx, uid)

	printStep(1, "date-picker (loadToken)", result.Step1)
	if !result.Step1.Success {
		return finish(false)
	}

	printStep(2, "postPickerStatus", result.Step2)
	if !result.Step2.Success {
		return finish(false)
	}

	printStep(3, "crossword (playId)", result.Step3)
	if !result.Step3.Success {
		return finish(false)
	}

	printStep4(result.Step4)
	return finish(result.Success)
}

func printStep(n int, name string, step models.StepResult) {
	printSeparator()
	fmt.Printf("%s%s📍 STEP %d: %s%s\n", colorBold, colorMagenta, n, name, colorReset)
	printSeparator()

	statusColor := colorGreen
	statusWord := "OK"
	if !step.Success {
		statusColor = colorRed
		statusWord = "FAILED"
	}
	fmt.Printf("  %s%s%s  (%dms)\n", statusColor, statusWord, colorReset, step.LatencyMs)
	if step.Error != "" {
		fmt.Printf("  %serror:%s %s\n", colorRed, colorReset, step.Error)
	}
	if len(step.Assets) > 0 {
		fmt.Printf("  %sassets:%s\n", colorDim, colorReset)
		for _, a := range step.Assets {
			assetColor := colorGreen
			if !a.Success {
				assetColor = colorRed
			}
			fmt.Printf("    %s%s%s  %dms\n", assetColor, a.URL, colorReset, a.LatencyMs)
		}
	}
}

func printStep4(step models.StepResult) {
	printSeparator()
	fmt.Printf("%s%s📍 STEP 4: play-post state machine (%d iterations)%s\n",
		colorBold, colorMagenta, len(step.Iterations), colorReset)
	printSeparator()

	for _, it := range step.Iterations {
		color := colorGreen
		word := "ok"
		if !it.Success {
			color = colorRed
			word = "FAILED"
		}
		fmt.Printf("  %2d. playState=%d  %s%-6s%s  %4dms", it.Iteration, it.PlayState, color, word, colorReset, it.LatencyMs)
		if it.Error != "" {
			fmt.Printf("  %s%s%s", colorRed, it.Error, colorReset)
		}
		fmt.Println()
	}
}

func printSeparator() {
	fmt.Printf("%s%s%s\n", colorDim, strings.Repeat("-", 52), colorReset)
}

func finish(success bool) error {
	printSeparator()
	if success {
		fmt.Printf("%s%s✅ DEBUG SESSION COMPLETED SUCCESSFULLY%s\n\n", colorBold, colorGreen, colorReset)
		return nil
	}
	fmt.Printf("%s%s❌ DEBUG SESSION COMPLETED WITH ERRORS%s\n\n", colorBold, colorRed, colorReset)
	return fmt.Errorf("dry run journey failed")
}
