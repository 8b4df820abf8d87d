package output

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// StatusQueued and friends are the display-level states a tracked job
// moves through. They are looser than the engine states on purpose so
// the renderer stays decoupled from scheduling details.
const (
	StatusQueued      = "queued"
	StatusProbing     = "probing"
	StatusDownloading = "downloading"
	StatusPaused      = "paused"
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusCancelled   = "cancelled"
)

type jobLine struct {
	Name        string
	Status      string
	Message     string
	Downloaded  int64
	Total       int64
	Speed       float64
	Done        bool
	Error       error
	StartTime   time.Time
	LastUpdated time.Time
	Index       int
}

type ErrorReport struct {
	Name  string
	Error error
	Time  time.Time
}

// Display renders a live multi-line view of all tracked jobs, redrawn
// in place on a ticker. All methods are safe for concurrent use.
type Display struct {
	jobs        map[string]*jobLine
	mutex       sync.RWMutex
	numLines    int
	errors      []ErrorReport
	doneCh      chan struct{} // Channel to signal stopping the display
	displayTick time.Duration // Interval between display updates
	jobCount    int
	displayWg   sync.WaitGroup // WaitGroup for display goroutine shutdown
}

func NewDisplay() *Display {
	return &Display{
		jobs:        make(map[string]*jobLine),
		errors:      []ErrorReport{},
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
	}
}

func (d *Display) Track(id, name string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.jobCount++
	d.jobs[id] = &jobLine{
		Name:        name,
		Status:      StatusQueued,
		Total:       -1,
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		Index:       d.jobCount,
	}
}

func (d *Display) SetMessage(id, message string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if info, exists := d.jobs[id]; exists {
		info.Message = message
		info.LastUpdated = time.Now()
	}
}

func (d *Display) UpdateProgress(id, status string, downloaded, total int64, speed float64) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if info, exists := d.jobs[id]; exists {
		info.Status = status
		info.Downloaded = downloaded
		info.Total = total
		info.Speed = speed
		info.LastUpdated = time.Now()
	}
}

func (d *Display) Complete(id, message string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if info, exists := d.jobs[id]; exists {
		if message == "" {
			info.Message = fmt.Sprintf("Completed %s", info.Name)
		} else {
			info.Message = message
		}
		info.Done = true
		info.Status = StatusSuccess
		if info.Total > 0 {
			info.Downloaded = info.Total
		}
		info.LastUpdated = time.Now()
	}
}

func (d *Display) Cancel(id string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if info, exists := d.jobs[id]; exists {
		info.Done = true
		info.Status = StatusCancelled
		info.Message = fmt.Sprintf("Cancelled %s", info.Name)
		info.LastUpdated = time.Now()
	}
}

func (d *Display) ReportError(id string, err error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if info, exists := d.jobs[id]; exists {
		info.Done = true
		info.Status = StatusError
		info.Error = err
		info.Message = fmt.Sprintf("Failed %s", info.Name)
		info.LastUpdated = time.Now()
		// Add to global error list
		d.errors = append(d.errors, ErrorReport{
			Name:  info.Name,
			Error: err,
			Time:  time.Now(),
		})
	}
}

func (d *Display) statusIndicator(status string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case StatusError:
		return errorStyle.Render(StyleSymbols["fail"])
	case StatusPaused, StatusCancelled:
		return warningStyle.Render(StyleSymbols["warning"])
	case StatusDownloading:
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func (d *Display) progressLine(info *jobLine) string {
	if info.Total > 0 {
		bar := ProgressBar(info.Downloaded, info.Total, 30)
		sizes := fmt.Sprintf("%s / %s", FormatBytes(uint64(info.Downloaded)), FormatBytes(uint64(info.Total)))
		eta := FormatETA(info.Downloaded, info.Total, info.Speed)
		return fmt.Sprintf("%s%s %s %s %s %s", bar,
			debugStyle.Render(sizes),
			StyleSymbols["bullet"],
			debugStyle.Render(FormatSpeed(info.Speed)),
			StyleSymbols["bullet"],
			debugStyle.Render("ETA "+eta))
	}
	// Size unknown, show what we have so far
	bar := IndeterminateBar(30)
	return fmt.Sprintf("%s%s %s %s", bar,
		debugStyle.Render(FormatBytes(uint64(info.Downloaded))),
		StyleSymbols["bullet"],
		debugStyle.Render(FormatSpeed(info.Speed)))
}

func (d *Display) sortJobs() (active, queued, done []*jobLine) {
	var all []*jobLine
	// Sort by index (tracking order)
	for _, info := range d.jobs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Index < all[j].Index
	})
	for _, j := range all {
		if j.Done {
			done = append(done, j)
		} else if j.Status == StatusQueued {
			queued = append(queued, j)
		} else {
			active = append(active, j)
		}
	}
	return active, queued, done
}

func (d *Display) updateDisplay() {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	// Get terminal height to limit output
	termHeight := getTerminalHeight()
	availableLines := termHeight - 3 // Leave some buffer for prompt

	if d.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", d.numLines)
	}

	lineCount := 0
	activeJobs, queuedJobs, doneJobs := d.sortJobs()

	// Calculate how many lines we need
	totalNeeded := len(activeJobs)*2 + len(queuedJobs) + len(doneJobs)

	// If we need more than available, trim completed jobs
	if totalNeeded > availableLines {
		maxDone := availableLines - (totalNeeded - len(doneJobs))
		if maxDone < 0 {
			maxDone = 0
		}
		if len(doneJobs) > maxDone {
			doneJobs = doneJobs[len(doneJobs)-maxDone:]
		}
	}

	// Display active jobs with a progress line underneath
	for _, info := range activeJobs {
		if lineCount >= availableLines {
			break
		}
		statusDisplay := d.statusIndicator(info.Status)
		elapsed := time.Since(info.StartTime).Round(time.Second)
		label := info.Message
		if label == "" {
			label = info.Name
		}
		var styledLabel string
		switch info.Status {
		case StatusPaused:
			styledLabel = warningStyle.Render(label + " (paused)")
		case StatusProbing:
			styledLabel = infoStyle.Render(label)
		default:
			styledLabel = pendingStyle.Render(label)
		}
		fmt.Printf("%s%s %s %s\n", strings.Repeat(" ", 2), statusDisplay, debugStyle.Render(elapsed.String()), styledLabel)
		lineCount++
		if lineCount >= availableLines {
			break
		}
		indent := strings.Repeat(" ", 2+4) // Additional indentation for the progress line
		fmt.Printf("%s%s\n", indent, streamStyle.Render(d.progressLine(info)))
		lineCount++
	}

	// Display queued jobs
	for _, info := range queuedJobs {
		if lineCount >= availableLines {
			break
		}
		statusDisplay := d.statusIndicator(info.Status)
		fmt.Printf("%s%s %s\n", strings.Repeat(" ", 2), statusDisplay, pendingStyle.Render("Waiting..."))
		lineCount++
	}

	// Collapse completed jobs if many
	if len(doneJobs) > 10 && lineCount < availableLines {
		PrintInfo(fmt.Sprintf("%s%d downloads finished with hidden status ...", strings.Repeat(" ", 2), len(doneJobs)-8))
		doneJobs = doneJobs[len(doneJobs)-8:]
		lineCount++
	}

	// Display completed jobs
	for _, info := range doneJobs {
		if lineCount >= availableLines {
			break
		}
		statusDisplay := d.statusIndicator(info.Status)
		totalTime := info.LastUpdated.Sub(info.StartTime).Round(time.Second)
		var styledMessage string
		switch info.Status {
		case StatusSuccess:
			styledMessage = successStyle.Render(info.Message)
		case StatusError:
			styledMessage = errorStyle.Render(info.Message)
		case StatusCancelled:
			styledMessage = warningStyle.Render(info.Message)
		default:
			styledMessage = pendingStyle.Render(info.Message)
		}
		fmt.Printf("%s%s %s %s\n", strings.Repeat(" ", 2), statusDisplay, debugStyle.Render(totalTime.String()), styledMessage)
		lineCount++
	}
	d.numLines = lineCount
}

func (d *Display) StartDisplay() {
	d.displayWg.Add(1)
	go func() {
		defer d.displayWg.Done()
		ticker := time.NewTicker(d.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.updateDisplay()
			case <-d.doneCh:
				d.updateDisplay()
				d.ShowSummary()
				return
			}
		}
	}()
}

func (d *Display) StopDisplay() {
	close(d.doneCh)
	d.displayWg.Wait()
}

func (d *Display) displayErrors() {
	if len(d.errors) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(strings.Repeat(" ", 2) + errorStyle.Bold(true).Render("Errors:"))
	for i, report := range d.errors {
		fmt.Printf("%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", report.Time.Format("15:04:05"))),
			errorStyle.Render(report.Name))
		fmt.Printf("%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", report.Error)))
	}
}

func (d *Display) ShowSummary() {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	fmt.Println()
	var success, failures, cancelled int
	for _, info := range d.jobs {
		switch info.Status {
		case StatusSuccess:
			success++
		case StatusError:
			failures++
		case StatusCancelled:
			cancelled++
		}
	}
	fmt.Println(strings.Repeat(" ", 2) + success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(d.jobs))))
	if failures > 0 {
		fmt.Println(strings.Repeat(" ", 2) + errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(d.jobs))))
	}
	if cancelled > 0 {
		fmt.Println(strings.Repeat(" ", 2) + warningStyle.Render(fmt.Sprintf("Cancelled %d of %d", cancelled, len(d.jobs))))
	}
	d.displayErrors()
	fmt.Println()
}
