package methods

import (
	"fmt"
	"os"
	"path/filepath"
)

// DeleteFiles 清空文件夹内的所有内容，文件夹本身保留
func DeleteFiles(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("读取目录失败: %w", err)
	}
	for _, entry := range entries {
		path := filepath.Join(dirPath, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("删除 %s 失败: %w", path, err)
		}
	}
	return nil
}
