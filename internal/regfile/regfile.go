// Package regfile — адаптер шины регистрового файла: синхронный байтовый протокол
// с раздельными стробами чтения/записи, задержкой чтения ровно в один такт и без wait-state.
//
// Чтение неотображённого адреса не меняет защёлкнутые данные (возвращается предыдущее значение),
// запись по неотображённому адресу игнорируется. Ошибок шина не сигнализирует.
package regfile

import "github.com/shiwa/timecard-mini/tcxo-disc/pkg/regmap"

// Request — сигналы мастера шины в одном такте.
type Request struct {
	Read      bool
	Write     bool
	Addr      uint8
	WriteData uint8
}

// Response — выходы регистрового файла в такте.
type Response struct {
	ReadData      uint8
	ReadDataValid bool
	WaitRequest   bool // всегда false
}

// View — источник данных для чтения (состояние контроллера на момент фронта).
type View interface {
	ErrStatus() uint8
	Err(w regmap.Window) int32
}

// Read возвращает значение байта по адресу; ok=false — адрес не читается.
func Read(v View, addr uint8) (uint8, bool) {
	w, idx, status, ok := regmap.Decode(addr)
	if !ok {
		return 0, false
	}
	if status {
		return v.ErrStatus() & regmap.StatusMask, true
	}
	return regmap.ErrByte(v.Err(w), idx), true
}

// File — защёлки канала чтения.
type File struct {
	readData  uint8
	readValid bool
}

// Outputs — значения выходов в текущем такте (защёлкнуты предыдущим фронтом).
func (f *File) Outputs() Response {
	return Response{ReadData: f.readData, ReadDataValid: f.readValid}
}

// Edge — фронт шины. readdatavalid(t+1) = read(t); данные берутся из v на этом фронте.
// Возвращает декодированный CONTROL и true, если в этом такте была запись в CONTROL.
func (f *File) Edge(req Request, v View) (regmap.Control, bool) {
	f.readValid = req.Read
	if req.Read {
		if data, ok := Read(v, req.Addr); ok {
			f.readData = data
		}
	}
	if req.Write && req.Addr == regmap.AddrControl {
		return regmap.DecodeControl(req.WriteData), true
	}
	return regmap.Control{}, false
}

// Reset обнуляет защёлки.
func (f *File) Reset() {
	*f = File{}
}
