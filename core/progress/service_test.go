package progress

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		done, total int
		want        float64
	}{
		{done: 0, total: 0, want: 0},
		{done: 0, total: 4, want: 0},
		{done: 1, total: 3, want: 33.33},
		{done: 2, total: 3, want: 66.67},
		{done: 3, total: 3, want: 100},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, percent(tc.done, tc.total), "%d/%d", tc.done, tc.total)
	}
}

func TestScoStatus(t *testing.T) {
	tests := []struct {
		name string
		data map[string]string
		want string
	}{
		{name: "empty", data: nil, want: ""},
		{name: "scorm 1.2", data: map[string]string{"cmi.core.lesson_status": "passed"}, want: "passed"},
		{name: "2004 success first", data: map[string]string{"cmi.success_status": "failed", "cmi.completion_status": "completed"}, want: "failed"},
		{name: "2004 completion", data: map[string]string{"cmi.completion_status": "completed"}, want: "completed"},
		{name: "1.2 wins", data: map[string]string{"cmi.core.lesson_status": "incomplete", "cmi.completion_status": "completed"}, want: "incomplete"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ScoStatus(tc.data))
		})
	}
}

func TestCertificate_WritePDF(t *testing.T) {
	issued := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	lc := LessonCertificate(Certification{CertID: "c-1", IssuedAt: issued}, "Amina Diallo", "Goroutines")
	assert.Equal(t, "Certificate of Completion", lc.Heading)
	assert.Equal(t, "Goroutines", lc.Title)

	sc := ScormCertificate(ScormCertification{CertID: "c-2", IssuedAt: issued}, "Amina Diallo", "Go basics “101”")
	assert.Equal(t, "SCORM package", sc.Subject)

	for _, c := range []Certificate{lc, sc} {
		var buf bytes.Buffer
		require.NoError(t, c.WritePDF(&buf))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	}
}
