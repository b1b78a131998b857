package methods

import (
	"crypto/md5"
	"encoding/hex"
)

func Md5Str(data string) string {

	// 创建一个 MD5 哈希对象
	hash := md5.New()

	// 将数据写入哈希对象
	hash.Write([]byte(data))

	// 获取加密结果（字节数组）
	md5Bytes := hash.Sum(nil)

	// 将加密结果转换为十六进制字符串
	md5String := hex.EncodeToString(md5Bytes)

	// 输出加密结果
	return md5String
}
