package domain

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		clock   string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"06:00", 360, false},
		{"08:30", 510, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"garbage", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			got, err := ParseClock(tt.clock)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseClock(%q) error = %v, wantErr %v", tt.clock, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseClock(%q) = %d, want %d", tt.clock, got, tt.want)
			}
		})
	}
}

func TestInQuietHours(t *testing.T) {
	at := func(hour, minute int) time.Time {
		return time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		settings *ReminderSettings
		at       time.Time
		want     bool
	}{
		{
			name: "inside overnight window",
			settings: &ReminderSettings{
				QuietHoursEnabled: true,
				QuietHoursStart:   "22:00",
				QuietHoursEnd:     "08:00",
			},
			at:   at(23, 30),
			want: true,
		},
		{
			name: "early morning inside overnight window",
			settings: &ReminderSettings{
				QuietHoursEnabled: true,
				QuietHoursStart:   "22:00",
				QuietHoursEnd:     "08:00",
			},
			at:   at(6, 0),
			want: true,
		},
		{
			name: "outside overnight window",
			settings: &ReminderSettings{
				QuietHoursEnabled: true,
				QuietHoursStart:   "22:00",
				QuietHoursEnd:     "08:00",
			},
			at:   at(12, 0),
			want: false,
		},
		{
			name: "window end is exclusive",
			settings: &ReminderSettings{
				QuietHoursEnabled: true,
				QuietHoursStart:   "22:00",
				QuietHoursEnd:     "08:00",
			},
			at:   at(8, 0),
			want: false,
		},
		{
			name: "same-day window",
			settings: &ReminderSettings{
				QuietHoursEnabled: true,
				QuietHoursStart:   "13:00",
				QuietHoursEnd:     "15:00",
			},
			at:   at(14, 0),
			want: true,
		},
		{
			name: "disabled window never suppresses",
			settings: &ReminderSettings{
				QuietHoursEnabled: false,
				QuietHoursStart:   "00:00",
				QuietHoursEnd:     "23:59",
			},
			at:   at(12, 0),
			want: false,
		},
		{
			name: "malformed window never suppresses",
			settings: &ReminderSettings{
				QuietHoursEnabled: true,
				QuietHoursStart:   "not-a-time",
				QuietHoursEnd:     "08:00",
			},
			at:   at(3, 0),
			want: false,
		},
		{
			name:     "nil settings",
			settings: nil,
			at:       at(3, 0),
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.settings.InQuietHours(tt.at); got != tt.want {
				t.Errorf("InQuietHours() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCombineDateAndClock(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	got, err := CombineDateAndClock(date, "06:15", loc)
	if err != nil {
		t.Fatalf("CombineDateAndClock() error = %v", err)
	}

	want := time.Date(2024, 5, 1, 6, 15, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("CombineDateAndClock() = %v, want %v", got, want)
	}

	if _, err := CombineDateAndClock(date, "25:00", loc); err == nil {
		t.Error("CombineDateAndClock() expected error for invalid clock")
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2024, 5, 1, 17, 42, 13, 99, time.UTC)
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if got := DateOnly(in); !got.Equal(want) {
		t.Errorf("DateOnly() = %v, want %v", got, want)
	}
}

func TestChatBindingDeliverable(t *testing.T) {
	tests := []struct {
		name    string
		binding *ChatBinding
		want    bool
	}{
		{"verified and active", &ChatBinding{ChatID: "42", Verified: true, IsActive: true}, true},
		{"unverified", &ChatBinding{ChatID: "42", Verified: false, IsActive: true}, false},
		{"inactive", &ChatBinding{ChatID: "42", Verified: true, IsActive: false}, false},
		{"missing chat id", &ChatBinding{Verified: true, IsActive: true}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.binding.Deliverable(); got != tt.want {
				t.Errorf("Deliverable() = %v, want %v", got, tt.want)
			}
		})
	}
}
