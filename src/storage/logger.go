package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/EMen11/Aviation-Data-Pipeline/src/config"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误，写完日志后退出进程
)

// Logger 日志记录器: 日志文件(JSON) + 控制台，底层为zap
type Logger struct {
	zl          *zap.Logger
	filename    string
	file        *os.File      // 日志文件句柄，轮转时替换
	mu          sync.Mutex    // 保护 file 和 subscribers
	subscribers []subscriber  // 订阅者列表
}

// subscriber 只接收不低于 min 级别的日志
type subscriber struct {
	ch  chan string
	min zapcore.Level
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径
//	level: 最低日志级别(debug/info/warn/error)
func NewLogger(filename, level string) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, eris.Wrapf(err, "logger: parse level %q", level)
	}

	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, eris.Wrapf(err, "logger: open %s", filename)
	}

	l := &Logger{filename: filename, file: file}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(fileWriter{l}),
		lvl,
	)
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stderr),
		lvl,
	)

	l.zl = zap.New(zapcore.NewTee(fileCore, consoleCore), zap.Hooks(l.publish))
	return l, nil
}

// NewNopLogger 不输出任何内容，测试中使用
func NewNopLogger() *Logger {
	l := &Logger{}
	l.zl = zap.New(zapcore.NewNopCore(), zap.Hooks(l.publish))
	return l
}

// NewLoggerFromZap 使用已有的zap logger(例如 zaptest/observer)
func NewLoggerFromZap(zl *zap.Logger) *Logger {
	l := &Logger{}
	l.zl = zl.WithOptions(zap.Hooks(l.publish))
	return l
}

// fileWriter 总是写入当前打开的日志文件，轮转后自动切换
type fileWriter struct {
	l *Logger
}

func (w fileWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	if w.l.file == nil {
		return len(p), nil
	}
	return w.l.file.Write(p)
}

// Close 刷新缓冲并关闭日志文件
func (l *Logger) Close() error {
	_ = l.zl.Sync()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Log 记录日志方法
// 参数:
//
//	level: 日志级别
//	message: 日志消息内容
//	fields: 结构化字段
func (l *Logger) Log(level LogLevel, message string, fields ...zap.Field) {
	l.zl.Log(level.zapLevel(), message, fields...)
}

// publish 作为zap hook，把每条日志推送给订阅者
func (l *Logger) publish(e zapcore.Entry) error {
	entry := fmt.Sprintf("[%s] %s: %s",
		e.Time.Format("2006-01-02 15:04:05"),
		e.Level.CapitalString(),
		e.Message)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, sub := range l.subscribers {
		if e.Level < sub.min {
			continue
		}
		select {
		case sub.ch <- entry:
		default: // 通道已满则跳过
		}
	}
	return nil
}

// CheckRotate 日志文件超过 LogMaxSize 时进行轮转
func (l *Logger) CheckRotate(cfg *config.Config) error {
	l.mu.Lock()
	file := l.file
	l.mu.Unlock()
	if file == nil {
		return nil
	}

	info, err := file.Stat()
	if err != nil {
		return eris.Wrap(err, "logger: stat log file")
	}

	maxSize := eval(cfg.LogMaxSize)
	if maxSize > 0 && info.Size() > maxSize {
		return l.rotateLog()
	}
	return nil
}

func (l *Logger) rotateLog() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		_ = l.file.Close()
		rotated := fmt.Sprintf("%s.%s", l.filename, time.Now().Format("20060102150405"))
		if err := os.Rename(l.filename, rotated); err != nil {
			return eris.Wrap(err, "logger: rename log file")
		}
	}

	file, err := os.OpenFile(l.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.file = nil
		return eris.Wrap(err, "logger: reopen log file")
	}
	l.file = file
	return nil
}

// Subscribe 订阅不低于 min 级别的日志消息
// 返回值:
//
//	<-chan string: 只读通道，用于接收日志消息(缓冲满时丢弃)
func (l *Logger) Subscribe(min LogLevel) <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan string, 100)
	l.subscribers = append(l.subscribers, subscriber{ch: ch, min: min.zapLevel()})
	return ch
}

// Drain 取出通道中已有的消息，不阻塞
func Drain(ch <-chan string) []string {
	var msgs []string
	for {
		select {
		case msg := <-ch:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// String 实现LogLevel的String方法
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARNING:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// eval 计算 "10 * 1024 * 1024" 这样的乘积表达式，无法解析时返回0
func eval(expr string) int64 {
	if strings.TrimSpace(expr) == "" {
		return 0
	}
	var result int64 = 1
	for _, part := range strings.Split(expr, "*") {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0
		}
		result *= num
	}
	return result
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string, fields ...zap.Field)   { l.Log(DEBUG, msg, fields...) }   // 记录调试信息
func (l *Logger) Info(msg string, fields ...zap.Field)    { l.Log(INFO, msg, fields...) }    // 记录普通信息
func (l *Logger) Warning(msg string, fields ...zap.Field) { l.Log(WARNING, msg, fields...) } // 记录警告信息
func (l *Logger) Error(msg string, fields ...zap.Field)   { l.Log(ERROR, msg, fields...) }   // 记录错误信息
func (l *Logger) Fatal(msg string, fields ...zap.Field)   { l.Log(FATAL, msg, fields...) }   // 记录致命错误并退出
