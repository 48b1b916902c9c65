package ffmpeg

import "testing"

func TestProgressParser(t *testing.T) {
	p := ProgressParser{}

	tests := []struct {
		name        string
		line        string
		wantOK      bool
		wantFrame   int64
		wantBitrate float64
		wantFPS     float64
		wantSpeed   float64
		wantErr     bool
	}{
		{
			name:        "progress line",
			line:        "frame=  250 fps= 25 q=23.0 size=    1024kB time=00:00:10.00 bitrate= 838.9kbits/s speed=1.01x",
			wantOK:      true,
			wantFrame:   250,
			wantBitrate: 838.9,
			wantFPS:     25,
			wantSpeed:   1.01,
		},
		{
			name:      "frame only",
			line:      "frame=12",
			wantOK:    true,
			wantFrame: 12,
		},
		{
			name:        "bitrate only",
			line:        "size=N/A time=00:00:01.00 bitrate= 512kbits/s",
			wantOK:      true,
			wantBitrate: 512,
		},
		{
			name:    "leveled error",
			line:    "[rtsp @ 0x55d0c] [error] method DESCRIBE failed: 404 Not Found",
			wantOK:  true,
			wantErr: true,
		},
		{
			name:    "error substring",
			line:    "Error opening input files: Connection refused",
			wantOK:  true,
			wantErr: true,
		},
		{
			name:   "plain info",
			line:   "[info] Input #0, rtsp, from 'rtsp://host/stream':",
			wantOK: false,
		},
		{
			name:   "empty",
			line:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := p.ParseLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if (d.Error != "") != tt.wantErr {
				t.Errorf("Error = %q, wantErr %v", d.Error, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if d.Frame != tt.wantFrame {
				t.Errorf("Frame = %d, want %d", d.Frame, tt.wantFrame)
			}
			if d.HasFrame != (tt.wantFrame != 0) {
				t.Errorf("HasFrame = %v", d.HasFrame)
			}
			if d.BitrateKbps != tt.wantBitrate {
				t.Errorf("BitrateKbps = %v, want %v", d.BitrateKbps, tt.wantBitrate)
			}
			if d.FPS != tt.wantFPS {
				t.Errorf("FPS = %v, want %v", d.FPS, tt.wantFPS)
			}
			if d.Speed != tt.wantSpeed {
				t.Errorf("Speed = %v, want %v", d.Speed, tt.wantSpeed)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[info] Stream mapping:", "info", "Stream mapping:"},
		{"[warning] deprecated pixel format", "warning", "deprecated pixel format"},
		{"[hls @ 0x1234] [verbose] Opening 'segment000000001.ts'", "verbose", "[hls @ 0x1234] Opening 'segment000000001.ts'"},
		{"frame=  10 fps=0.0", "debug", "frame=  10 fps=0.0"},
		{"Input #0, rtsp, from 'rtsp://host':", "info", "Input #0, rtsp, from 'rtsp://host':"},
		{"[hls @ 0x1] no level here", "info", "[hls @ 0x1] no level here"},
	}

	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}
