package utils

import (
	"bufio"
	"errors"
	"io"
)

// ReadLines 逐行回调直到 EOF，去掉行尾的 \n 与 \r\n
// 超过 max 字节的行切成多段依次回调，读取不会因此中断
func ReadLines(r io.Reader, max int, fn func(line string)) error {
	if max <= 0 {
		max = 64 * 1024
	}
	br := bufio.NewReaderSize(r, 64*1024)
	var buf []byte
	split := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		buf = append(buf, chunk...)
		for len(buf) >= max && (isPrefix || len(buf) > max) {
			fn(string(buf[:max]))
			buf = append(buf[:0], buf[max:]...)
			split = true
		}
		if err != nil {
			if len(buf) > 0 {
				fn(string(buf))
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if isPrefix {
			continue
		}
		if len(buf) > 0 || !split {
			fn(string(buf))
		}
		buf = buf[:0]
		split = false
	}
}
