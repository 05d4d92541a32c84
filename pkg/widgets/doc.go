// Package widgets provides the small catalog of box widgets the runtime
// ships with.
//
// Every widget here is a plain struct literal:
//
//	ConstrainedBox{
//	    Constraints: box.Tight(50, 50),
//	    Child:       ColorBox{Color: canvas.ColorRed},
//	}
//
// Layout helpers cover the common shapes: ColumnOf, Padded, Sized.
package widgets
