package utils

import (
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"整数", 10.0, 10.0},
		{"一位小数", 10.5, 10.5},
		{"两位小数", 10.55, 10.55},
		{"三位小数四舍五入", 10.555, 10.56},
		{"负数", -10.555, -10.56},
		{"零", 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Round(tt.input)
			if result != tt.expected {
				t.Errorf("Round(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGetSize(t *testing.T) {
	tests := []struct {
		name     string
		input    uint64
		expected string
	}{
		{"0字节", 0, "0 B"},
		{"1KB以下", 512, "512 B"},
		{"1KB", 1024, "1.00 KiB"},
		{"1MB", 1024 * 1024, "1.00 MiB"},
		{"1GB", 1024 * 1024 * 1024, "1.00 GiB"},
		{"1.5GB", 1024 * 1024 * 1024 * 3 / 2, "1.50 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetSize(tt.input)
			if result != tt.expected {
				t.Errorf("GetSize(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name     string
		input    uint64
		expected string
	}{
		{"0秒", 0, "0s"},
		{"30秒", 30, "30s"},
		{"1分钟", 60, "1m 0s"},
		{"1小时", 3600, "1h 0m 0s"},
		{"1天", 86400, "1d 0h 0m 0s"},
		{"1天1小时1分1秒", 86400 + 3600 + 60 + 1, "1d 1h 1m 1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatUptime(tt.input)
			if result != tt.expected {
				t.Errorf("FormatUptime(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"正常", "200", 200},
		{"带空格", " 50 ", 50},
		{"空字符串", "", 100},
		{"非法", "abc", 100},
		{"超过上限", "5000", 100},
		{"低于下限", "0", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseInt(tt.input, 100, 1, 2000)
			if result != tt.expected {
				t.Errorf("ParseInt(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

