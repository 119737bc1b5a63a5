package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestWrite_OneRecordPerLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	records := []map[string]any{
		{"issue_key": "KAFKA-1", "project": "KAFKA"},
		{"issue_key": "KAFKA-2", "project": "KAFKA"},
		{"issue_key": "SPARK-1", "project": "SPARK"},
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}

	if w.Count() != 3 {
		t.Errorf("Count() = %d, want 3", w.Count())
	}

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var decoded map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Errorf("Line %d is not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines != 3 {
		t.Errorf("Lines = %d, want 3", lines)
	}
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_data.jsonl")

	w, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter() error: %v", err)
	}
	if err := w.Write(map[string]string{"issue_key": "HDFS-1"}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		t.Error("File should end with a newline")
	}
}

func TestWrite_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = w.Write(map[string]int{"n": n})
		}(i)
	}
	wg.Wait()

	if w.Count() != 20 {
		t.Errorf("Count() = %d, want 20", w.Count())
	}

	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var decoded map[string]int
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Errorf("Interleaved write produced invalid JSON line: %v", err)
		}
	}
}
