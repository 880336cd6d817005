// Package fcsv reads and writes 3D Slicer markup fiducial files (.fcsv),
// the coordinate format used for both the approximate seed landmarks and
// the final predicted landmarks.
package fcsv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"afidsregrf/internal/models"
)

// NumAFIDs is the number of standardized anatomical fiducials.
const NumAFIDs = 32

// Labels holds the standard AFID protocol label for each landmark, indexed
// by landmark number minus one.
var Labels = [NumAFIDs]string{
	"AC", "PC", "ICS", "PMJ", "SIPF",
	"RSLMS", "LSLMS", "RILMS", "LILMS", "CUL",
	"IMS", "RMB", "LMB", "PG", "RLVAC",
	"LLVAC", "RLVPC", "LLVPC", "GENU", "SPLE",
	"RALTH", "LALTH", "RSAMTH", "LSAMTH", "RIAMTH",
	"LIAMTH", "RIGO", "LIGO", "RVOH", "LVOH",
	"ROSF", "LOSF",
}

// Seed returns the coordinate recorded for one landmark in a subject's
// fiducial file. Rows are ordered by landmark index, so row afid-1 holds
// landmark afid.
func Seed(path string, afid int) (models.Coordinate, error) {
	if afid < 1 || afid > NumAFIDs {
		return models.Coordinate{}, fmt.Errorf("landmark index %d outside [1, %d]", afid, NumAFIDs)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("read fiducial file: %w", err)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comment = '#'
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("parse fiducial file %s: %w", path, err)
	}
	if len(records) < afid {
		return models.Coordinate{}, fmt.Errorf("fiducial file %s has %d rows, need row %d", path, len(records), afid)
	}
	rec := records[afid-1]
	if len(rec) < 4 {
		return models.Coordinate{}, fmt.Errorf("fiducial file %s row %d has %d fields, need at least 4", path, afid, len(rec))
	}
	var out [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return models.Coordinate{}, fmt.Errorf("fiducial file %s row %d: bad coordinate %q", path, afid, rec[i+1])
		}
		out[i] = v
	}
	return models.Coordinate{X: out[0], Y: out[1], Z: out[2]}, nil
}

// Write persists the predicted landmark table, one row per landmark in
// ascending index order. The whole file is assembled in memory and written
// in one shot so a failure cannot leave a truncated table behind.
func Write(path string, coords [NumAFIDs][3]int) error {
	var buf bytes.Buffer
	buf.WriteString("# Markups fiducial file version = 4.6\n")
	buf.WriteString("# CoordinateSystem = 0\n")
	buf.WriteString("# columns = id,x,y,z,ow,ox,oy,oz,vis,sel,lock,label,desc,associatedNodeID\n")
	for i, c := range coords {
		fmt.Fprintf(&buf, "vtkMRMLMarkupsFiducialNode_%d,%d,%d,%d,0,0,0,1,1,1,0,%s,,\n",
			i+1, c[0], c[1], c[2], Labels[i])
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write fiducial file: %w", err)
	}
	return nil
}
