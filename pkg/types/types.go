// Package types 定义整个项目中使用的公共类型
package types

import (
	"time"
)

// --- 认证相关类型 ---

// SudoLoginRequest sudo 登录请求
type SudoLoginRequest struct {
	Password string `json:"password"`
}

// SessionInfo 返回给前端的会话信息，不含密码
type SessionInfo struct {
	Authenticated bool      `json:"authenticated"`
	LoginTime     time.Time `json:"login_time,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	CSRFToken     string    `json:"csrf_token,omitempty"`
}

// ActiveSession 活跃会话
type ActiveSession struct {
	SessionID  string    `json:"session_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastActive time.Time `json:"last_active"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	DeviceType string    `json:"device_type"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	IsCurrent  bool      `json:"is_current"`
}

// LoginRecord 登录记录
type LoginRecord struct {
	Time      time.Time `json:"time"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
	Location  string    `json:"location"`
	Success   bool      `json:"success"`
	SessionID string    `json:"session_id,omitempty"`
}

// OperationLog 操作日志
type OperationLog struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	IPAddress string    `json:"ip_address"`
}

// --- 执行相关类型 ---

// ExecRequest 后台执行请求
type ExecRequest struct {
	Path   string `json:"path"`
	Params string `json:"params"`
}

// ExecStatus 后台执行状态快照
type ExecStatus struct {
	ProcessID  string    `json:"process_id"`
	Running    bool      `json:"running"`
	ReturnCode *int      `json:"return_code"`
	Path       string    `json:"path"`
	Params     string    `json:"params"`
	CreatedAt  time.Time `json:"created_at"`
	LineCount  int       `json:"line_count"`
}

// ExecOutput 单行输出事件
type ExecOutput struct {
	ProcessID string `json:"process_id"`
	Line      string `json:"line"`
}

// ExecExit 进程退出事件
type ExecExit struct {
	ProcessID  string `json:"process_id"`
	ReturnCode int    `json:"return_code"`
}

// ExecHistory 加入时回放的历史
type ExecHistory struct {
	ProcessID  string   `json:"process_id"`
	Lines      []string `json:"lines"`
	Running    bool     `json:"running"`
	ReturnCode *int     `json:"return_code"`
}

// ExecError 执行相关错误事件
type ExecError struct {
	ProcessID string `json:"process_id"`
	Error     string `json:"error"`
}

// ConsoleOutput 控制台输出事件
type ConsoleOutput struct {
	Output string `json:"output"`
}

// --- Systemd相关类型 ---

// ServiceInfo Systemd服务信息
type ServiceInfo struct {
	Unit          string `json:"unit"`
	Load          string `json:"load"`
	Active        string `json:"active"`
	Sub           string `json:"sub"`
	Description   string `json:"description"`
	UnitFileState string `json:"unit_file_state"`
	Favorite      bool   `json:"favorite"`
}

// HostInfo 主机静态信息
type HostInfo struct {
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Kernel   string `json:"kernel"`
	Arch     string `json:"arch"`
	Uptime   string `json:"uptime"`
	CPU      string `json:"cpu"`
	Memory   string `json:"memory"`
	IP       string `json:"ip"`
}

// NetDevice 网络接口概要
type NetDevice struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	MAC       string `json:"mac"`
	Operstate string `json:"operstate"`
}

// --- 进程相关类型 ---

// ProcessInfo 进程信息
type ProcessInfo struct {
	PID         int32    `json:"pid"`
	Name        string   `json:"name"`
	Username    string   `json:"username"`
	Status      string   `json:"status"`
	Exe         string   `json:"exe"`
	Cwd         string   `json:"cwd"`
	Cmdline     []string `json:"cmdline"`
	CPUPercent  float64  `json:"cpu_percent"`
	MemoryRSS   uint64   `json:"memory_rss"`
	Memory      string   `json:"memory"`
	NumThreads  int32    `json:"num_threads"`
	Connections int      `json:"connections"`
	Favorite    bool     `json:"favorite"`
}

// --- 文件相关类型 ---

// FileEntry 文件浏览条目
type FileEntry struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	IsDirectory  bool      `json:"is_directory"`
	IsExecutable bool      `json:"is_executable"`
	Size         int64     `json:"size"`
	Mode         string    `json:"mode"`
	Modified     time.Time `json:"modified"`
}

// --- 监控数据类型 ---

// Metrics 推送给前端的主机指标
type Metrics struct {
	CPU         CPUInfo     `json:"cpu"`
	Memory      MemInfo     `json:"memory"`
	Disk        DiskInfo    `json:"disk"`
	Network     NetInfo     `json:"network"`
	CPUTemp     *float64    `json:"cpu_temp"`
	GPU         []GPUDetail `json:"gpu"`
	HasInternet bool        `json:"has_internet"`
	Uptime      string      `json:"uptime"`
}

// CPUInfo CPU信息
type CPUInfo struct {
	Percent float64   `json:"percent"`
	PerCore []float64 `json:"per_core"`
	LoadAvg []float64 `json:"load_avg"`
	Model   string    `json:"model"`
	Cores   int       `json:"cores"`
}

// MemInfo 内存信息
type MemInfo struct {
	Total     string  `json:"total"`
	Used      string  `json:"used"`
	Available string  `json:"available"`
	Percent   float64 `json:"percent"`
}

// DiskInfo 根分区使用情况
type DiskInfo struct {
	Mountpoint string  `json:"mountpoint"`
	Total      string  `json:"total"`
	Used       string  `json:"used"`
	Free       string  `json:"free"`
	Percent    float64 `json:"percent"`
}

// NetInfo 网络信息
type NetInfo struct {
	BytesSent string            `json:"bytes_sent"`
	BytesRecv string            `json:"bytes_recv"`
	RawSent   uint64            `json:"raw_sent"`
	RawRecv   uint64            `json:"raw_recv"`
	Addresses map[string]string `json:"addresses"`
}

// GPUDetail GPU详细信息
type GPUDetail struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	VRAMTotal   string  `json:"vram_total"`
	VRAMUsed    string  `json:"vram_used"`
	VRAMPercent float64 `json:"vram_percent"`
	Utilization float64 `json:"utilization"`
	TempC       float64 `json:"temp_c"`
	PowerW      float64 `json:"power_w"`
}

// --- 收藏 ---

// Favorites 收藏的服务与进程
type Favorites struct {
	Services  []string `json:"services"`
	Processes []string `json:"processes"`
}
