package jobs

import "testing"

func TestSplitFrames(t *testing.T) {
	cases := []struct {
		name              string
		first, last, size int
		want              []frameChunk
	}{
		{"single frame", 1, 1, 1, []frameChunk{{1, 1}}},
		{"even chunks", 1, 4, 2, []frameChunk{{1, 2}, {3, 4}}},
		{"remainder", 1, 5, 2, []frameChunk{{1, 2}, {3, 4}, {5, 5}}},
		{"zero size treated as one", 0, 2, 0, []frameChunk{{0, 0}, {1, 1}, {2, 2}}},
		{"reversed bounds", 3, 1, 10, []frameChunk{{1, 3}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitFrames(tc.first, tc.last, tc.size)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("chunk %d = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestTaskStatusIsTerminal(t *testing.T) {
	for _, status := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusReview} {
		if !status.IsTerminal() {
			t.Fatalf("%s should be terminal", status)
		}
	}
	for _, status := range []TaskStatus{TaskStatusQueued, TaskStatusRunning} {
		if status.IsTerminal() {
			t.Fatalf("%s should not be terminal", status)
		}
	}
}
