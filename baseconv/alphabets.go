package baseconv

// Predefined alphabets.
const (
	Binary      = "01"
	Octal       = "01234567"
	Decimal     = "0123456789"
	Duodecimal  = "0123456789AB"
	Hexadecimal = "0123456789ABCDEF"

	Lower       = "abcdefghijklmnopqrstuvwxyz"
	Upper       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Letters     = Lower + Upper
	Punctuation = ` .,?!:;'"-_`
	English     = Letters + Punctuation
	Filepath    = Letters + ":/"

	Datastore = "!#$%&'()*+,-./0123456789:;<=>?@ABCDEFGHIJKLMNOPQRSTUVWXYZ[]^_`abcdefghijklmnopqrstuvwxyz{|}~"
)

// UTF8 holds all 256 byte values in order, so a string converted to UTF8
// is the big-endian byte representation of its number.
var UTF8 = func() string {
	buf := make([]byte, 256)
	for i := range buf {
		buf[i] = byte(i)
	}
	return string(buf)
}()

// Named maps alphabet names, as used on the command line, to alphabets.
var Named = map[string]string{
	"binary":      Binary,
	"octal":       Octal,
	"decimal":     Decimal,
	"duodecimal":  Duodecimal,
	"hexadecimal": Hexadecimal,
	"utf8":        UTF8,
	"lower":       Lower,
	"upper":       Upper,
	"letters":     Letters,
	"punctuation": Punctuation,
	"english":     English,
	"filepath":    Filepath,
	"datastore":   Datastore,
}
