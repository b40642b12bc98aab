package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseCLI reads a flight controller CLI dump. It understands
//
//	geozone <id> <shape> <type> <min alt cm> <max alt cm> <sea level ref> <action> <vertex count>
//	geozone vertex <zone id> <idx> <lat> <lon>
//	safehome <idx> <enabled> <lat> <lon>
//
// and ignores every other line. Vertex lines for zone -1 are free slots.
func ParseCLI(r io.Reader) (*File, error) {
	store := NewStore()
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		var err error
		switch {
		case fields[0] == "geozone" && len(fields) > 1 && fields[1] == "vertex":
			err = parseVertexLine(store, fields[2:])
		case fields[0] == "geozone":
			err = parseZoneLine(store, fields[1:])
		case fields[0] == "safehome":
			err = parseSafeHomeLine(store, fields[1:])
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading cli dump: %w", err)
	}
	return &File{Settings: Default(), Store: store}, nil
}

func atoiFields(fields []string, n int) ([]int64, error) {
	if len(fields) != n {
		return nil, fmt.Errorf("want %d arguments, got %d", n, len(fields))
	}
	out := make([]int64, n)
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseZoneLine(store *Store, fields []string) error {
	v, err := atoiFields(fields, 8)
	if err != nil {
		return fmt.Errorf("geozone: %w", err)
	}
	id := int(v[0])
	if id < 0 || id >= MaxZonesInConfig {
		return fmt.Errorf("geozone index %d out of range 0-%d: %w", id, MaxZonesInConfig-1, ErrBadZone)
	}
	if v[1] > int64(ShapePolygon) || v[2] > int64(TypeInclusive) || v[6] > int64(ActionRTH) || v[1] < 0 || v[2] < 0 || v[6] < 0 {
		return fmt.Errorf("geozone %d: bad shape, type or action: %w", id, ErrBadZone)
	}
	if v[7] < 0 || v[7] > MaxVerticesInConfig {
		return fmt.Errorf("geozone %d: %d vertices: %w", id, v[7], ErrTooManyVertices)
	}
	store.Zones[id] = ZoneConfig{
		Shape:       Shape(v[1]),
		Type:        ZoneType(v[2]),
		MinAltitude: int32(v[3]),
		MaxAltitude: int32(v[4]),
		SeaLevelRef: v[5] != 0,
		FenceAction: FenceAction(v[6]),
		VertexCount: uint8(v[7]),
	}
	return nil
}

func parseVertexLine(store *Store, fields []string) error {
	v, err := atoiFields(fields, 4)
	if err != nil {
		return fmt.Errorf("geozone vertex: %w", err)
	}
	if v[0] < 0 {
		return nil
	}
	if !store.SetVertex(int(v[0]), int(v[1]), int32(v[2]), int32(v[3])) {
		return fmt.Errorf("geozone vertex %d %d: %w", v[0], v[1], ErrTooManyVertices)
	}
	return nil
}

func parseSafeHomeLine(store *Store, fields []string) error {
	v, err := atoiFields(fields, 4)
	if err != nil {
		return fmt.Errorf("safehome: %w", err)
	}
	if v[0] < 0 || v[0] >= MaxSafeHomes {
		return fmt.Errorf("safehome index %d out of range 0-%d", v[0], MaxSafeHomes-1)
	}
	store.SafeHomes[v[0]] = SafeHome{Enabled: v[1] != 0, Lat: int32(v[2]), Lon: int32(v[3])}
	return nil
}

// WriteCLI writes the store in the dump format ParseCLI reads.
func WriteCLI(w io.Writer, store *Store) error {
	bw := bufio.NewWriter(w)
	for i, sh := range store.SafeHomes {
		fmt.Fprintf(bw, "safehome %d %d %d %d\n", i, b2i(sh.Enabled), sh.Lat, sh.Lon)
	}
	for i, z := range store.Zones {
		fmt.Fprintf(bw, "geozone %d %d %d %d %d %d %d %d\n",
			i, z.Shape, z.Type, z.MinAltitude, z.MaxAltitude, b2i(z.SeaLevelRef), z.FenceAction, z.VertexCount)
	}
	for _, v := range store.Vertices {
		fmt.Fprintf(bw, "geozone vertex %d %d %d %d\n", v.ZoneID, v.Index, v.Lat, v.Lon)
	}
	used := store.UsedVertexCount()
	fmt.Fprintf(bw, "# %d vertices free (Used %d of %d)\n", MaxVerticesInConfig-used, used, MaxVerticesInConfig)
	return bw.Flush()
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
