// package formatter reads and writes the archive's metadata files (JSON collections, CSV listings, download reports)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/shared"
	"github.com/desertthunder/zester/internal/tasks"
	"github.com/dustin/go-humanize"
)

const (
	LikesFile     = "likes.json"
	PlaylistsFile = "playlists.json"
	LikesCSVFile  = "likes.csv"
	ReportFile    = "report.json"
)

// WriteLikes stores the liked tracks as dir/likes.json and returns the path.
func WriteLikes(dir string, tracks []models.Track) (string, error) {
	if tracks == nil {
		tracks = []models.Track{}
	}
	return writeJSON(filepath.Join(dir, LikesFile), tracks)
}

// ReadLikes loads dir/likes.json. A missing file wraps [shared.ErrInputNotFound].
func ReadLikes(dir string) ([]models.Track, error) {
	var tracks []models.Track
	if err := readJSON(filepath.Join(dir, LikesFile), &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// WritePlaylists stores hydrated playlists as dir/playlists.json and returns the path.
func WritePlaylists(dir string, playlists []models.Playlist) (string, error) {
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	return writeJSON(filepath.Join(dir, PlaylistsFile), playlists)
}

// ReadPlaylists loads dir/playlists.json. A missing file wraps [shared.ErrInputNotFound].
func ReadPlaylists(dir string) ([]models.Playlist, error) {
	var playlists []models.Playlist
	if err := readJSON(filepath.Join(dir, PlaylistsFile), &playlists); err != nil {
		return nil, err
	}
	for i := range playlists {
		if playlists[i].Tracks == nil {
			playlists[i].Tracks = []models.Track{}
		}
	}
	return playlists, nil
}

func writeJSON(path string, v any) (string, error) {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", shared.ErrInputNotFound, path)
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrInvalidInput, path, err)
	}
	return nil
}

// ExportToCSV converts tracks to CSV with columns: ID, Title, Artist, Duration, Genre, URL
func ExportToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Duration", "Genre", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			strconv.FormatInt(track.ID, 10),
			track.Title,
			track.Artist(),
			FormatDuration(track.Duration),
			track.Genre,
			track.PermalinkURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteCSVExport writes tracks as CSV.
//
// Defaults to likes.csv in the current directory as the filename.
func WriteCSVExport(tracks []models.Track, path string) (string, error) {
	if path == "" {
		path = LikesCSVFile
	}

	data, err := ExportToCSV(tracks)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	return path, nil
}

// FormatDuration renders milliseconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(ms int) string {
	if ms <= 0 {
		return "0:00"
	}
	total := ms / 1000
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ReportEntry is one track in a [Report].
type ReportEntry struct {
	TrackID  int64  `json:"track_id"`
	Track    string `json:"track"`
	Playlist string `json:"playlist,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
	Size     string `json:"size,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Report is the serializable form of a [tasks.DownloadReport].
type Report struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Attempted   int           `json:"attempted"`
	Downloaded  int           `json:"downloaded"`
	Failed      int           `json:"failed"`
	Bytes       int64         `json:"bytes"`
	Size        string        `json:"size"`
	Failures    []ReportEntry `json:"failures"`
	Files       []ReportEntry `json:"files"`
}

// NewReport flattens a download report, listing every failure with its error.
func NewReport(r *tasks.DownloadReport) Report {
	report := Report{
		GeneratedAt: time.Now().UTC(),
		Failures:    []ReportEntry{},
		Files:       []ReportEntry{},
	}
	if r == nil {
		report.Size = humanize.Bytes(0)
		return report
	}

	report.Attempted = r.Attempted
	report.Downloaded = len(r.Downloaded)
	report.Failed = r.Failed()
	report.Bytes = r.Bytes
	report.Size = humanize.Bytes(uint64(max(r.Bytes, 0)))

	for _, res := range r.Skipped {
		entry := entryFor(res)
		entry.Error = res.Err.Error()
		report.Failures = append(report.Failures, entry)
	}
	for _, res := range r.Downloaded {
		entry := entryFor(res)
		entry.Bytes = res.Bytes
		entry.Size = humanize.Bytes(uint64(max(res.Bytes, 0)))
		report.Files = append(report.Files, entry)
	}
	return report
}

func entryFor(res tasks.TrackResult) ReportEntry {
	entry := ReportEntry{TrackID: res.Track.ID, Track: res.Track.String()}
	if res.Playlist != nil {
		entry.Playlist = res.Playlist.Title
	}
	return entry
}

// WriteReport stores the report as dir/report.json and returns the path.
func WriteReport(dir string, r *tasks.DownloadReport) (string, error) {
	return writeJSON(filepath.Join(dir, ReportFile), NewReport(r))
}

// Summary renders a short human-readable account of a download run, listing skipped tracks.
func Summary(r *tasks.DownloadReport) string {
	report := NewReport(r)

	var buf strings.Builder
	fmt.Fprintf(&buf, "Downloaded %d of %d tracks (%s)\n", report.Downloaded, report.Attempted, report.Size)
	if report.Failed == 0 {
		return buf.String()
	}

	fmt.Fprintf(&buf, "Skipped %d:\n", report.Failed)
	for _, f := range report.Failures {
		if f.Playlist != "" {
			fmt.Fprintf(&buf, "  - %s (%s): %s\n", f.Track, f.Playlist, f.Error)
		} else {
			fmt.Fprintf(&buf, "  - %s: %s\n", f.Track, f.Error)
		}
	}
	return buf.String()
}
