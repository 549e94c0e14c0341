// Package authtest はトークン検証のテストで使う改ざんヘルパーを提供する。
package authtest

import "strings"

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// TamperSignature は署名部の先頭1文字を書き換えたトークンを返す。
func TamperSignature(token string) string {
	i := strings.LastIndex(token, ".") + 1
	replacement := byte('A')
	if token[i] == 'A' {
		replacement = 'B'
	}
	return token[:i] + string(replacement) + token[i+1:]
}

// TamperSignatureTail は署名部末尾の文字を、base64url表での添字の最下位ビットを反転した文字に置き換える。
// HS256の署名(32バイト)ではこのビットはデコード結果に現れない。
func TamperSignatureTail(token string) string {
	last := len(token) - 1
	idx := strings.IndexByte(base64URLAlphabet, token[last])
	return token[:last] + string(base64URLAlphabet[idx^1])
}
