package squash

import (
	"math"
	"time"

	"golang.org/x/exp/constraints"
)

// Composed value types. Their codecs are assembled from primitive codecs
// only; the types carry no behavior of their own.
type (
	Vector2 struct {
		X, Y float64
	}

	Vector3 struct {
		X, Y, Z float64
	}

	Vector2int16 struct {
		X, Y int16
	}

	Vector3int16 struct {
		X, Y, Z int16
	}

	// Color3 channels are in [0, 1] and are stored with 8 bits each.
	Color3 struct {
		R, G, B float64
	}

	UDim struct {
		Scale  float64
		Offset int32
	}

	UDim2 struct {
		X, Y UDim
	}

	Rect struct {
		Min, Max Vector2
	}

	NumberRange struct {
		Min, Max float64
	}

	// CFrame is a position plus a row-major 3x3 rotation matrix.
	CFrame struct {
		Position Vector3
		Rotation [9]float64
	}
)

// IdentityCFrame has no translation and an identity rotation.
var IdentityCFrame = CFrame{Rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}

type composed[T any] struct {
	size int
	ser  func(c *Cursor, v T) error
	des  func(c *Cursor) (T, error)
}

func (cc composed[T]) Size() int                { return cc.size }
func (cc composed[T]) Kind() Kind               { return KindComposed }
func (cc composed[T]) Ser(c *Cursor, v T) error { return cc.ser(c, v) }
func (cc composed[T]) Des(c *Cursor) (T, error) { return cc.des(c) }

// numberOrDefault picks the number codec for a composed type; float32 is
// the default.
func numberOrDefault(codec string, number []Codec[float64]) Codec[float64] {
	switch len(number) {
	case 0:
		return Float(4)
	case 1:
		if number[0].Size() == Dynamic {
			panic(schemaErrf(codec, "number codec must have a fixed size"))
		}
		return number[0]
	default:
		panic(schemaErrf(codec, "at most one number codec allowed, got %d", len(number)))
	}
}

type numberAdapter[T constraints.Integer | constraints.Float] struct {
	c Codec[T]
}

// AsNumber lets an integer or float codec of any width stand in where a
// float64 number codec is expected, e.g. Vector3Codec(AsNumber(Int(2))).
// Encoding converts with Go's usual truncation rules.
func AsNumber[T constraints.Integer | constraints.Float](c Codec[T]) Codec[float64] {
	if f, ok := any(c).(Codec[float64]); ok {
		return f
	}
	return numberAdapter[T]{c}
}

func (na numberAdapter[T]) Size() int  { return na.c.Size() }
func (na numberAdapter[T]) Kind() Kind { return na.c.Kind() }

func (na numberAdapter[T]) Ser(c *Cursor, v float64) error {
	return na.c.Ser(c, T(v))
}

func (na numberAdapter[T]) Des(c *Cursor) (float64, error) {
	v, err := na.c.Des(c)
	return float64(v), err
}

func Vector2Codec(number ...Codec[float64]) Codec[Vector2] {
	num := numberOrDefault("Vector2", number)
	return composed[Vector2]{
		size: 2 * num.Size(),
		ser: func(c *Cursor, v Vector2) error {
			if err := num.Ser(c, v.X); err != nil {
				return err
			}
			return num.Ser(c, v.Y)
		},
		des: func(c *Cursor) (v Vector2, err error) {
			if v.X, err = num.Des(c); err != nil {
				return
			}
			v.Y, err = num.Des(c)
			return
		},
	}
}

func Vector3Codec(number ...Codec[float64]) Codec[Vector3] {
	num := numberOrDefault("Vector3", number)
	return composed[Vector3]{
		size: 3 * num.Size(),
		ser: func(c *Cursor, v Vector3) error {
			if err := num.Ser(c, v.X); err != nil {
				return err
			}
			if err := num.Ser(c, v.Y); err != nil {
				return err
			}
			return num.Ser(c, v.Z)
		},
		des: func(c *Cursor) (v Vector3, err error) {
			if v.X, err = num.Des(c); err != nil {
				return
			}
			if v.Y, err = num.Des(c); err != nil {
				return
			}
			v.Z, err = num.Des(c)
			return
		},
	}
}

func Vector2int16Codec() Codec[Vector2int16] {
	i16 := IntOf[int16](2)
	return composed[Vector2int16]{
		size: 4,
		ser: func(c *Cursor, v Vector2int16) error {
			if err := i16.Ser(c, v.X); err != nil {
				return err
			}
			return i16.Ser(c, v.Y)
		},
		des: func(c *Cursor) (v Vector2int16, err error) {
			if v.X, err = i16.Des(c); err != nil {
				return
			}
			v.Y, err = i16.Des(c)
			return
		},
	}
}

func Vector3int16Codec() Codec[Vector3int16] {
	i16 := IntOf[int16](2)
	return composed[Vector3int16]{
		size: 6,
		ser: func(c *Cursor, v Vector3int16) error {
			if err := i16.Ser(c, v.X); err != nil {
				return err
			}
			if err := i16.Ser(c, v.Y); err != nil {
				return err
			}
			return i16.Ser(c, v.Z)
		},
		des: func(c *Cursor) (v Vector3int16, err error) {
			if v.X, err = i16.Des(c); err != nil {
				return
			}
			if v.Y, err = i16.Des(c); err != nil {
				return
			}
			v.Z, err = i16.Des(c)
			return
		},
	}
}

func Color3Codec() Codec[Color3] {
	u8 := UintOf[uint8](1)
	toByte := func(f float64) uint8 {
		return uint8(math.Round(min(max(f, 0), 1) * 255))
	}
	return composed[Color3]{
		size: 3,
		ser: func(c *Cursor, v Color3) error {
			if err := u8.Ser(c, toByte(v.R)); err != nil {
				return err
			}
			if err := u8.Ser(c, toByte(v.G)); err != nil {
				return err
			}
			return u8.Ser(c, toByte(v.B))
		},
		des: func(c *Cursor) (Color3, error) {
			b, err := c.Read(3)
			if err != nil {
				return Color3{}, err
			}
			return Color3{float64(b[0]) / 255, float64(b[1]) / 255, float64(b[2]) / 255}, nil
		},
	}
}

func UDimCodec(number ...Codec[float64]) Codec[UDim] {
	num := numberOrDefault("UDim", number)
	i32 := IntOf[int32](4)
	return composed[UDim]{
		size: num.Size() + 4,
		ser: func(c *Cursor, v UDim) error {
			if err := num.Ser(c, v.Scale); err != nil {
				return err
			}
			return i32.Ser(c, v.Offset)
		},
		des: func(c *Cursor) (v UDim, err error) {
			if v.Scale, err = num.Des(c); err != nil {
				return
			}
			v.Offset, err = i32.Des(c)
			return
		},
	}
}

func UDim2Codec(number ...Codec[float64]) Codec[UDim2] {
	ud := UDimCodec(number...)
	return composed[UDim2]{
		size: 2 * ud.Size(),
		ser: func(c *Cursor, v UDim2) error {
			if err := ud.Ser(c, v.X); err != nil {
				return err
			}
			return ud.Ser(c, v.Y)
		},
		des: func(c *Cursor) (v UDim2, err error) {
			if v.X, err = ud.Des(c); err != nil {
				return
			}
			v.Y, err = ud.Des(c)
			return
		},
	}
}

func RectCodec(number ...Codec[float64]) Codec[Rect] {
	v2 := Vector2Codec(number...)
	return composed[Rect]{
		size: 2 * v2.Size(),
		ser: func(c *Cursor, v Rect) error {
			if err := v2.Ser(c, v.Min); err != nil {
				return err
			}
			return v2.Ser(c, v.Max)
		},
		des: func(c *Cursor) (v Rect, err error) {
			if v.Min, err = v2.Des(c); err != nil {
				return
			}
			v.Max, err = v2.Des(c)
			return
		},
	}
}

func NumberRangeCodec(number ...Codec[float64]) Codec[NumberRange] {
	num := numberOrDefault("NumberRange", number)
	return composed[NumberRange]{
		size: 2 * num.Size(),
		ser: func(c *Cursor, v NumberRange) error {
			if err := num.Ser(c, v.Min); err != nil {
				return err
			}
			return num.Ser(c, v.Max)
		},
		des: func(c *Cursor) (v NumberRange, err error) {
			if v.Min, err = num.Des(c); err != nil {
				return
			}
			v.Max, err = num.Des(c)
			return
		},
	}
}

// CFrameCodec stores the position with the given number codec and the
// rotation matrix as nine float32s.
func CFrameCodec(number ...Codec[float64]) Codec[CFrame] {
	pos := Vector3Codec(number...)
	rot := Float(4)
	return composed[CFrame]{
		size: pos.Size() + 9*rot.Size(),
		ser: func(c *Cursor, v CFrame) error {
			if err := pos.Ser(c, v.Position); err != nil {
				return err
			}
			for _, f := range v.Rotation {
				if err := rot.Ser(c, f); err != nil {
					return err
				}
			}
			return nil
		},
		des: func(c *Cursor) (v CFrame, err error) {
			if v.Position, err = pos.Des(c); err != nil {
				return
			}
			for i := range v.Rotation {
				if v.Rotation[i], err = rot.Des(c); err != nil {
					return
				}
			}
			return
		},
	}
}

// DateTimeCodec stores a time as Unix milliseconds in int(8). Decoded times
// are in UTC.
func DateTimeCodec() Codec[time.Time] {
	i64 := Int(8)
	return composed[time.Time]{
		size: 8,
		ser: func(c *Cursor, v time.Time) error {
			return i64.Ser(c, v.UnixMilli())
		},
		des: func(c *Cursor) (time.Time, error) {
			ms, err := i64.Des(c)
			if err != nil {
				return time.Time{}, err
			}
			return time.UnixMilli(ms).UTC(), nil
		},
	}
}

type (
	Ray struct {
		Origin, Direction Vector3
	}

	// Region3 is an axis-aligned box given by its corners.
	Region3 struct {
		Min, Max Vector3
	}

	Region3int16 struct {
		Min, Max Vector3int16
	}

	NumberSequenceKeypoint struct {
		Time, Value, Envelope float64
	}

	NumberSequence struct {
		Keypoints []NumberSequenceKeypoint
	}

	ColorSequenceKeypoint struct {
		Time  float64
		Value Color3
	}

	ColorSequence struct {
		Keypoints []ColorSequenceKeypoint
	}

	Axes struct {
		X, Y, Z bool
	}

	Faces struct {
		Right, Top, Back, Left, Bottom, Front bool
	}

	PathWaypoint struct {
		Position Vector3
		Action   PathWaypointAction
		Label    string
	}
)

type PathWaypointAction uint8

const (
	WaypointWalk PathWaypointAction = iota
	WaypointJump
	WaypointCustom
)

func RayCodec(number ...Codec[float64]) Codec[Ray] {
	v3 := Vector3Codec(number...)
	return composed[Ray]{
		size: 2 * v3.Size(),
		ser: func(c *Cursor, v Ray) error {
			if err := v3.Ser(c, v.Origin); err != nil {
				return err
			}
			return v3.Ser(c, v.Direction)
		},
		des: func(c *Cursor) (v Ray, err error) {
			if v.Origin, err = v3.Des(c); err != nil {
				return
			}
			v.Direction, err = v3.Des(c)
			return
		},
	}
}

func Region3Codec(number ...Codec[float64]) Codec[Region3] {
	v3 := Vector3Codec(number...)
	return composed[Region3]{
		size: 2 * v3.Size(),
		ser: func(c *Cursor, v Region3) error {
			if err := v3.Ser(c, v.Min); err != nil {
				return err
			}
			return v3.Ser(c, v.Max)
		},
		des: func(c *Cursor) (v Region3, err error) {
			if v.Min, err = v3.Des(c); err != nil {
				return
			}
			v.Max, err = v3.Des(c)
			return
		},
	}
}

func Region3int16Codec() Codec[Region3int16] {
	v3 := Vector3int16Codec()
	return composed[Region3int16]{
		size: 2 * v3.Size(),
		ser: func(c *Cursor, v Region3int16) error {
			if err := v3.Ser(c, v.Min); err != nil {
				return err
			}
			return v3.Ser(c, v.Max)
		},
		des: func(c *Cursor) (v Region3int16, err error) {
			if v.Min, err = v3.Des(c); err != nil {
				return
			}
			v.Max, err = v3.Des(c)
			return
		},
	}
}

func NumberSequenceKeypointCodec(number ...Codec[float64]) Codec[NumberSequenceKeypoint] {
	num := numberOrDefault("NumberSequenceKeypoint", number)
	return composed[NumberSequenceKeypoint]{
		size: 3 * num.Size(),
		ser: func(c *Cursor, v NumberSequenceKeypoint) error {
			if err := num.Ser(c, v.Time); err != nil {
				return err
			}
			if err := num.Ser(c, v.Value); err != nil {
				return err
			}
			return num.Ser(c, v.Envelope)
		},
		des: func(c *Cursor) (v NumberSequenceKeypoint, err error) {
			if v.Time, err = num.Des(c); err != nil {
				return
			}
			if v.Value, err = num.Des(c); err != nil {
				return
			}
			v.Envelope, err = num.Des(c)
			return
		},
	}
}

// NumberSequenceCodec writes a vlq keypoint count followed by the
// keypoints.
func NumberSequenceCodec(number ...Codec[float64]) Codec[NumberSequence] {
	kps := Array(NumberSequenceKeypointCodec(number...))
	return composed[NumberSequence]{
		size: Dynamic,
		ser: func(c *Cursor, v NumberSequence) error {
			return kps.Ser(c, v.Keypoints)
		},
		des: func(c *Cursor) (NumberSequence, error) {
			k, err := kps.Des(c)
			return NumberSequence{k}, err
		},
	}
}

// ColorSequenceKeypointCodec stores the time as a float32 and the color as
// Color3.
func ColorSequenceKeypointCodec() Codec[ColorSequenceKeypoint] {
	tm := Float(4)
	col := Color3Codec()
	return composed[ColorSequenceKeypoint]{
		size: tm.Size() + col.Size(),
		ser: func(c *Cursor, v ColorSequenceKeypoint) error {
			if err := tm.Ser(c, v.Time); err != nil {
				return err
			}
			return col.Ser(c, v.Value)
		},
		des: func(c *Cursor) (v ColorSequenceKeypoint, err error) {
			if v.Time, err = tm.Des(c); err != nil {
				return
			}
			v.Value, err = col.Des(c)
			return
		},
	}
}

func ColorSequenceCodec() Codec[ColorSequence] {
	kps := Array(ColorSequenceKeypointCodec())
	return composed[ColorSequence]{
		size: Dynamic,
		ser: func(c *Cursor, v ColorSequence) error {
			return kps.Ser(c, v.Keypoints)
		},
		des: func(c *Cursor) (ColorSequence, error) {
			k, err := kps.Des(c)
			return ColorSequence{k}, err
		},
	}
}

// AxesCodec packs the three flags into one byte, X in the lowest bit.
func AxesCodec() Codec[Axes] {
	return composed[Axes]{
		size: 1,
		ser: func(c *Cursor, v Axes) error {
			return c.WriteByte(packBits(v.X, v.Y, v.Z))
		},
		des: func(c *Cursor) (Axes, error) {
			b, err := c.ReadByte()
			return Axes{b&1 != 0, b&2 != 0, b&4 != 0}, err
		},
	}
}

// FacesCodec packs the six flags into one byte in Right, Top, Back, Left,
// Bottom, Front order from the lowest bit.
func FacesCodec() Codec[Faces] {
	return composed[Faces]{
		size: 1,
		ser: func(c *Cursor, v Faces) error {
			return c.WriteByte(packBits(v.Right, v.Top, v.Back, v.Left, v.Bottom, v.Front))
		},
		des: func(c *Cursor) (Faces, error) {
			b, err := c.ReadByte()
			return Faces{b&1 != 0, b&2 != 0, b&4 != 0, b&8 != 0, b&16 != 0, b&32 != 0}, err
		},
	}
}

func packBits(flags ...bool) byte {
	var b byte
	for i, f := range flags {
		if f {
			b |= 1 << i
		}
	}
	return b
}

// PathWaypointCodec stores the position, the action as uint(1) and the
// label as a dynamic string.
func PathWaypointCodec(number ...Codec[float64]) Codec[PathWaypoint] {
	pos := Vector3Codec(number...)
	action := UintOf[PathWaypointAction](1)
	label := String()
	return composed[PathWaypoint]{
		size: Dynamic,
		ser: func(c *Cursor, v PathWaypoint) error {
			if err := pos.Ser(c, v.Position); err != nil {
				return err
			}
			if err := action.Ser(c, v.Action); err != nil {
				return err
			}
			return label.Ser(c, v.Label)
		},
		des: func(c *Cursor) (v PathWaypoint, err error) {
			if v.Position, err = pos.Des(c); err != nil {
				return
			}
			if v.Action, err = action.Des(c); err != nil {
				return
			}
			v.Label, err = label.Des(c)
			return
		},
	}
}
