package labels

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DirName is the directory under the dataset root that holds label files.
const DirName = "labels"

// ClassesFileName is the class vocabulary file written alongside labels.
const ClassesFileName = "classes.txt"

// Detection is one predicted bounding box in YOLO format: a class index and
// center/size coordinates normalized to [0,1] of the image dimensions.
type Detection struct {
	ClassID int     `json:"classId"`
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Valid reports whether the detection has a non-negative class index and all
// coordinates within [0,1].
func (d Detection) Valid() bool {
	if d.ClassID < 0 {
		return false
	}
	for _, v := range []float64{d.CenterX, d.CenterY, d.Width, d.Height} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Line renders the detection as a single YOLO label line with six decimal
// digits, without a trailing newline.
func (d Detection) Line() string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", d.ClassID, d.CenterX, d.CenterY, d.Width, d.Height)
}

// Encode renders detections as the full label file contents, one line per
// detection, each terminated with a newline.
func Encode(detections []Detection) []byte {
	var b strings.Builder
	for _, d := range detections {
		b.WriteString(d.Line())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// ParseLine parses one YOLO label line. Lines with the wrong field count,
// non-numeric fields, or out-of-range coordinates are rejected.
func ParseLine(line string) (Detection, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Detection{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	classID, err := strconv.Atoi(fields[0])
	if err != nil {
		// Some producers emit the class index as a float.
		f, ferr := strconv.ParseFloat(fields[0], 64)
		if ferr != nil {
			return Detection{}, fmt.Errorf("invalid class id %q", fields[0])
		}
		classID = int(f)
	}

	var coords [4]float64
	for i, field := range fields[1:] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Detection{}, fmt.Errorf("invalid coordinate %q", field)
		}
		coords[i] = v
	}

	d := Detection{
		ClassID: classID,
		CenterX: coords[0],
		CenterY: coords[1],
		Width:   coords[2],
		Height:  coords[3],
	}
	if !d.Valid() {
		return Detection{}, fmt.Errorf("detection out of range: %s", d.Line())
	}
	return d, nil
}

// Parse reads label file contents, skipping blank lines. Any malformed line
// fails the whole parse; use ParseLenient for untrusted producers.
func Parse(data []byte) ([]Detection, error) {
	var detections []Detection
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d, err := ParseLine(line)
		if err != nil {
			return nil, err
		}
		detections = append(detections, d)
	}
	return detections, nil
}

// ParseLenient reads label contents, silently dropping malformed lines. It
// also tolerates markdown code fences around the payload, which remote
// vision models are prone to emitting.
func ParseLenient(data []byte) []Detection {
	var detections []Detection
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		d, err := ParseLine(line)
		if err != nil {
			continue
		}
		detections = append(detections, d)
	}
	return detections
}

// PathFor maps a dataset-relative image path to its label file path under
// <datasetRoot>/labels/, replacing the image extension with .txt and
// preserving any subdirectory structure.
func PathFor(datasetRoot, relImagePath string) string {
	stem := strings.TrimSuffix(relImagePath, filepath.Ext(relImagePath))
	return filepath.Join(datasetRoot, DirName, stem+".txt")
}

// WriteFile writes the label file for one image, creating parent directories
// as needed. An existing label file is overwritten.
func WriteFile(datasetRoot, relImagePath string, detections []Detection) error {
	path := PathFor(datasetRoot, relImagePath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating label directory: %w", err)
	}
	if err := os.WriteFile(path, Encode(detections), 0o644); err != nil {
		return fmt.Errorf("writing label file: %w", err)
	}
	return nil
}

// ReadFile parses the label file for one image. A missing file yields an
// empty detection list and no error.
func ReadFile(datasetRoot, relImagePath string) ([]Detection, error) {
	data, err := os.ReadFile(PathFor(datasetRoot, relImagePath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// WriteClasses writes the class vocabulary to <datasetRoot>/labels/classes.txt,
// one name per line. An empty vocabulary is a no-op.
func WriteClasses(datasetRoot string, classNames []string) error {
	if len(classNames) == 0 {
		return nil
	}
	dir := filepath.Join(datasetRoot, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating label directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ClassesFileName),
		[]byte(strings.Join(classNames, "\n")+"\n"), 0o644)
}
