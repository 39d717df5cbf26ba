// Package sdfile reads molecule records from MDL SD files (V2000).  Each SD
// record contributes one molecule; pKa annotations are taken from the data
// items following the connection table.
package sdfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/ProtonGraph/internal/domain/chem"
	"github.com/turtacn/ProtonGraph/internal/domain/record"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

// Property names recognized in the data block.  Site atom indices are
// zero-based, matching the pipeline's structure indexing.
const (
	PropPKa      = "pKa"
	PropSiteAtom = "site_atom"
	PropPKaType  = "pka_type"
	PropID       = "ID"
)

// Reader implements record.RecordSource over an SD file stream.  The file
// holds each molecule once, in its stored protonation state; the conjugate
// variant of every annotated site is derived from the site atom's type.
type Reader struct {
	sc     *bufio.Scanner
	closer io.Closer
	logger logging.Logger
	serial int
}

// NewReader wraps an SD file stream.  If r also implements io.Closer, Close
// forwards to it.
func NewReader(r io.Reader, logger logging.Logger) *Reader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	closer, _ := r.(io.Closer)
	return &Reader{sc: sc, closer: closer, logger: logger.Named("sdfile")}
}

// Next parses the next SD record, returning (nil, nil) at end of stream.
func (r *Reader) Next(ctx context.Context) (*record.MoleculeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	title, ok, err := r.header()
	if err != nil || !ok {
		return nil, err
	}
	r.serial++

	structure, err := r.connectionTable()
	if err != nil {
		return nil, err
	}
	props, err := r.dataItems()
	if err != nil {
		return nil, err
	}

	perceive(structure)

	rec := &record.MoleculeRecord{
		SourceID:  props[PropID],
		Name:      title,
		Structure: structure,
	}
	if rec.SourceID == "" {
		if title != "" {
			rec.SourceID = title
		} else {
			rec.SourceID = fmt.Sprintf("sdf-%d", r.serial)
		}
	}

	sites, err := r.sites(structure, props)
	if err != nil {
		r.logger.Warn("record has unusable site annotations",
			logging.String("source_id", rec.SourceID),
			logging.Error(err))
	}
	rec.Sites = sites
	return rec, nil
}

func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// header consumes the three header lines and returns the title line.  The
// second return is false at end of stream.
func (r *Reader) header() (string, bool, error) {
	if !r.sc.Scan() {
		return "", false, r.sc.Err()
	}
	title := strings.TrimSpace(r.sc.Text())
	for i := 0; i < 2; i++ {
		if !r.sc.Scan() {
			return "", false, errors.New(errors.ErrCodeSDFileParseError, "unexpected EOF in header")
		}
	}
	return title, true, nil
}

// connectionTable parses the counts line, atom block, bond block and M-lines
// up to M  END.
func (r *Reader) connectionTable() (*chem.Structure, error) {
	if !r.sc.Scan() {
		return nil, errors.New(errors.ErrCodeSDFileParseError, "missing counts line")
	}
	counts := r.sc.Text()
	if len(counts) < 6 {
		return nil, errors.New(errors.ErrCodeSDFileParseError, "counts line too short")
	}
	atomCount, err := strconv.Atoi(strings.TrimSpace(counts[0:3]))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSDFileParseError, "atom count")
	}
	bondCount, err := strconv.Atoi(strings.TrimSpace(counts[3:6]))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSDFileParseError, "bond count")
	}

	s := &chem.Structure{
		Atoms: make([]chem.Atom, atomCount),
		Bonds: make([]chem.Bond, 0, bondCount),
	}
	for i := 0; i < atomCount; i++ {
		if !r.sc.Scan() {
			return nil, errors.New(errors.ErrCodeSDFileParseError, "unexpected EOF in atom block")
		}
		line := r.sc.Text()
		if len(line) < 34 {
			return nil, errors.Newf(errors.ErrCodeSDFileParseError, "atom line %d too short", i+1)
		}
		s.Atoms[i].Element = strings.TrimSpace(line[31:34])
		if len(line) >= 39 {
			if code, err := strconv.Atoi(strings.TrimSpace(line[36:39])); err == nil {
				s.Atoms[i].FormalCharge = legacyCharge(code)
			}
		}
	}
	for i := 0; i < bondCount; i++ {
		if !r.sc.Scan() {
			return nil, errors.New(errors.ErrCodeSDFileParseError, "unexpected EOF in bond block")
		}
		line := r.sc.Text()
		if len(line) < 9 {
			return nil, errors.Newf(errors.ErrCodeSDFileParseError, "bond line %d too short", i+1)
		}
		a, err1 := strconv.Atoi(strings.TrimSpace(line[0:3]))
		b, err2 := strconv.Atoi(strings.TrimSpace(line[3:6]))
		code, err3 := strconv.Atoi(strings.TrimSpace(line[6:9]))
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, errors.Newf(errors.ErrCodeSDFileParseError, "bond line %d malformed", i+1)
		}
		order, err := bondOrder(code)
		if err != nil {
			return nil, err
		}
		if a < 1 || a > atomCount || b < 1 || b > atomCount {
			return nil, errors.Newf(errors.ErrCodeSDFileParseError, "bond line %d atom out of range", i+1)
		}
		s.Bonds = append(s.Bonds, chem.Bond{A: a - 1, B: b - 1, Order: order})
	}

	for r.sc.Scan() {
		line := r.sc.Text()
		if strings.HasPrefix(line, "M  END") {
			return s, nil
		}
		if strings.HasPrefix(line, "M  CHG") {
			applyChargeLine(s, line)
		}
	}
	return nil, errors.New(errors.ErrCodeSDFileParseError, "missing M  END")
}

// dataItems parses "> <name>" data blocks up to the $$$$ delimiter.
func (r *Reader) dataItems() (map[string]string, error) {
	props := make(map[string]string)
	var name string
	var value []string

	flush := func() {
		if name != "" {
			props[name] = strings.TrimSpace(strings.Join(value, "\n"))
		}
		name, value = "", nil
	}

	for r.sc.Scan() {
		line := r.sc.Text()
		switch {
		case strings.HasPrefix(line, "$$$$"):
			flush()
			return props, nil
		case strings.HasPrefix(line, ">"):
			flush()
			if open := strings.Index(line, "<"); open >= 0 {
				if close := strings.Index(line[open:], ">"); close > 0 {
					name = line[open+1 : open+close]
				}
			}
		case name != "":
			value = append(value, line)
		}
	}
	// A final record without $$$$ is still accepted.
	flush()
	return props, nil
}

// sites derives the site annotations from the record properties.  Multiple
// sites use semicolon-separated lists of equal length.
func (r *Reader) sites(structure *chem.Structure, props map[string]string) ([]record.SiteAnnotation, error) {
	pkaProp, ok := props[PropPKa]
	if !ok {
		return nil, nil
	}
	pkas := strings.Split(pkaProp, ";")
	atoms := strings.Split(props[PropSiteAtom], ";")
	if len(atoms) != len(pkas) {
		return nil, errors.New(errors.ErrCodeSDFileParseError, "pKa and site_atom lists differ in length")
	}
	var types []string
	if tp := props[PropPKaType]; tp != "" {
		types = strings.Split(tp, ";")
		if len(types) != len(pkas) {
			return nil, errors.New(errors.ErrCodeSDFileParseError, "pka_type list length mismatch")
		}
	}

	var sites []record.SiteAnnotation
	for i := range pkas {
		pka, err := strconv.ParseFloat(strings.TrimSpace(pkas[i]), 64)
		if err != nil {
			return sites, errors.Wrap(err, errors.ErrCodeSDFileParseError, "pKa value")
		}
		atomIdx, err := strconv.Atoi(strings.TrimSpace(atoms[i]))
		if err != nil {
			return sites, errors.Wrap(err, errors.ErrCodeSDFileParseError, "site atom index")
		}
		if atomIdx < 0 || atomIdx >= structure.NumAtoms() {
			return sites, errors.Newf(errors.ErrCodeSDFileParseError, "site atom %d out of range", atomIdx)
		}

		pkaType := record.PKaUnknown
		if types != nil {
			pkaType = record.PKaType(strings.TrimSpace(types[i]))
		}
		prot, deprot := conjugates(structure, atomIdx, pkaType)
		sites = append(sites, record.SiteAnnotation{
			SiteID:       i,
			AtomIndex:    atomIdx,
			PKa:          pka,
			Type:         pkaType,
			Protonated:   prot,
			Deprotonated: deprot,
		})
	}
	return sites, nil
}

// conjugates derives both protonation states of a site from the stored
// structure.  Acidic sites are stored protonated; basic sites are stored
// neutral and gain a proton.  Without a declared type, a site atom carrying
// hydrogens is treated as acidic.
func conjugates(s *chem.Structure, atomIdx int, pkaType record.PKaType) (prot, deprot *chem.Structure) {
	t := pkaType
	if t == record.PKaUnknown {
		if s.Atoms[atomIdx].ImplicitH > 0 {
			t = record.PKaAcidic
		} else {
			t = record.PKaBasic
		}
	}
	if t == record.PKaAcidic {
		prot = cloneStructure(s)
		deprot = cloneStructure(s)
		deprot.Atoms[atomIdx].ImplicitH--
		deprot.Atoms[atomIdx].FormalCharge--
		return prot, deprot
	}
	prot = cloneStructure(s)
	prot.Atoms[atomIdx].ImplicitH++
	prot.Atoms[atomIdx].FormalCharge++
	deprot = cloneStructure(s)
	return prot, deprot
}

func cloneStructure(s *chem.Structure) *chem.Structure {
	out := &chem.Structure{
		Atoms: make([]chem.Atom, len(s.Atoms)),
		Bonds: make([]chem.Bond, len(s.Bonds)),
	}
	copy(out.Atoms, s.Atoms)
	copy(out.Bonds, s.Bonds)
	return out
}

// legacyCharge maps the atom-block charge column codes.
func legacyCharge(code int) int {
	switch code {
	case 1:
		return 3
	case 2:
		return 2
	case 3:
		return 1
	case 5:
		return -1
	case 6:
		return -2
	case 7:
		return -3
	default:
		return 0
	}
}

func bondOrder(code int) (chem.BondOrder, error) {
	switch code {
	case 1:
		return chem.BondSingle, nil
	case 2:
		return chem.BondDouble, nil
	case 3:
		return chem.BondTriple, nil
	case 4:
		return chem.BondAromatic, nil
	default:
		return "", errors.Newf(errors.ErrCodeSDFileParseError, "unsupported bond type %d", code)
	}
}

// applyChargeLine applies an "M  CHG nn8 aaa vvv ..." property line.
func applyChargeLine(s *chem.Structure, line string) {
	fields := strings.Fields(line)
	// fields: M CHG n atom charge atom charge ...
	if len(fields) < 5 {
		return
	}
	for i := 3; i+1 < len(fields); i += 2 {
		idx, err1 := strconv.Atoi(fields[i])
		chg, err2 := strconv.Atoi(fields[i+1])
		if err1 != nil || err2 != nil {
			continue
		}
		if idx >= 1 && idx <= len(s.Atoms) {
			s.Atoms[idx-1].FormalCharge = chg
		}
	}
}
