package output

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// FormatBytes converts bytes to human-readable format
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed renders a byte rate as human-readable units per second
func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "0 B/s"
	}
	formatted := FormatBytes(uint64(bytesPerSecond))
	return formatted[:len(formatted)-1] + "B/s" // Replace "B" with "B/s"
}

// FormatETA estimates remaining time from the average rate so far
func FormatETA(downloaded, total int64, bytesPerSecond float64) string {
	if bytesPerSecond <= 0 || total <= 0 || downloaded >= total {
		return "calculating..."
	}
	etaSeconds := int64(float64(total-downloaded) / bytesPerSecond)
	if etaSeconds < 60 {
		return fmt.Sprintf("%ds", etaSeconds)
	} else if etaSeconds < 3600 {
		return fmt.Sprintf("%dm %ds", etaSeconds/60, etaSeconds%60)
	}
	return fmt.Sprintf("%dh %dm", etaSeconds/3600, (etaSeconds%3600)/60)
}

// ProgressBar creates a progress bar string
func ProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		total = 1
	}
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	if filled < width {
		bar += strings.Repeat(" ", width-filled)
	}
	bar += StyleSymbols["bullet"]
	return debugStyle.Render(fmt.Sprintf("%s %.1f%% %s ", bar, percent*100, StyleSymbols["bullet"]))
}

// IndeterminateBar is shown while the resource size is unknown
func IndeterminateBar(width int) string {
	if width <= 0 {
		width = 30
	}
	marker := width / 3
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(" ", marker)
	bar += strings.Repeat(StyleSymbols["hline"], width-2*marker)
	bar += strings.Repeat(" ", marker)
	bar += StyleSymbols["bullet"]
	return debugStyle.Render(bar + " ")
}

func getTerminalHeight() int {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 24 // Default fallback height
	}
	return height
}
