// Package utils 提供项目中使用的通用工具函数
package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Round 四舍五入到两位小数
func Round(val float64) float64 {
	return math.Round(val*100) / 100
}

// GetSize 将字节数格式化为可读的字符串
func GetSize(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatUptime 将秒数格式化为可读的uptime字符串
func FormatUptime(sec uint64) string {
	days := sec / 86400
	sec %= 86400
	hours := sec / 3600
	sec %= 3600
	mins := sec / 60
	secs := sec % 60
	parts := []string{}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	parts = append(parts, fmt.Sprintf("%ds", secs))
	return strings.Join(parts, " ")
}

// ParseInt 解析查询参数中的整数，失败或越界时返回默认值
func ParseInt(s string, def, min, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < min || v > max {
		return def
	}
	return v
}

