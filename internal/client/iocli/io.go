// Package iocli ввод-вывод консольного клиента. Команды пишут и читают
// только через IO, поэтому в тестах терминал заменяется моком.
package iocli

//go:generate moq -out io_mock.go . IO

type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	// ReadInput читает строку без перевода строки; в конце ввода io.EOF
	ReadInput(prompt string) (string, error)
	// ReadPassword читает без эха, если stdin терминал
	ReadPassword(prompt string) (string, error)
	// Write для tabwriter
	Write(p []byte) (n int, err error)
}
