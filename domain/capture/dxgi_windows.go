//go:build windows

package capture

// DXGI desktop duplication through raw COM vtable calls. One session holds the
// adapter, output, D3D11 device and context, the duplication handle and a CPU
// readable staging texture sized to the whole output. CopyRect copies the
// requested rectangle of the acquired desktop texture into the staging texture,
// maps it and copies the BGRA rows into the frame.

import (
	"fmt"
	"image"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// HRESULTs
const (
	dxgiErrorNotFound      = 0x887A0002
	dxgiErrorUnsupported   = 0x887A0004
	dxgiErrorDeviceRemoved = 0x887A0005
	dxgiErrorAccessLost    = 0x887A0026
	dxgiErrorWaitTimeout   = 0x887A0027
	eNotImpl               = 0x80004001
)

// D3D11 constants
const (
	d3dDriverTypeUnknown = 0
	d3d11SDKVersion      = 7
	formatB8G8R8A8Unorm  = 87
	usageStaging         = 3
	cpuAccessRead        = 0x20000
	mapRead              = 1
)

// vtable slots
const (
	vtQueryInterface = 0
	vtRelease        = 2

	vtFactoryEnumAdapters1 = 12
	vtAdapterEnumOutputs   = 7
	vtOutputGetDesc        = 7
	vtOutput1Duplicate     = 22
	vtDuplAcquireNextFrame = 8
	vtDuplReleaseFrame     = 14
	vtDeviceCreateTexture  = 5
	vtContextMap           = 14
	vtContextUnmap         = 15
	vtContextCopyRegion    = 46
)

var (
	dxgiDLL                = windows.NewLazySystemDLL("dxgi.dll")
	d3d11DLL               = windows.NewLazySystemDLL("d3d11.dll")
	procCreateDXGIFactory1 = dxgiDLL.NewProc("CreateDXGIFactory1")
	procD3D11CreateDevice  = d3d11DLL.NewProc("D3D11CreateDevice")
	iidIDXGIFactory1       = windows.GUID{Data1: 0x770aae78, Data2: 0xf26f, Data3: 0x4dba, Data4: [8]byte{0xa8, 0x29, 0x25, 0x3c, 0x83, 0xd1, 0xb3, 0x87}}
	iidIDXGIOutput1        = windows.GUID{Data1: 0x00cddea8, Data2: 0x939b, Data3: 0x4b83, Data4: [8]byte{0xa3, 0x40, 0xa6, 0x85, 0x22, 0x66, 0x66, 0xcc}}
	iidID3D11Texture2D     = windows.GUID{Data1: 0x6f15aaf2, Data2: 0xd208, Data3: 0x4e89, Data4: [8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
)

type rect struct{ Left, Top, Right, Bottom int32 }

type outputDesc struct {
	DeviceName         [32]uint16
	DesktopCoordinates rect
	AttachedToDesktop  int32
	Rotation           uint32
	Monitor            uintptr
}

type texture2DDesc struct {
	Width, Height  uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32
	SampleQuality  uint32
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

type box struct{ Left, Top, Front, Right, Bottom, Back uint32 }

type mappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

// comCall invokes vtable slot idx on obj and returns the raw HRESULT.
func comCall(obj uintptr, idx int, args ...uintptr) uint32 {
	r, _, _ := syscall.SyscallN(vtableFn(obj, idx), append([]uintptr{obj}, args...)...)
	return uint32(r)
}

func comRelease(obj uintptr) {
	if obj != 0 {
		comCall(obj, vtRelease)
	}
}

func failed(hr uint32) bool { return int32(hr) < 0 }

func hrError(op string, hr uint32) error {
	switch hr {
	case dxgiErrorUnsupported, eNotImpl:
		return fmt.Errorf("%s: %w", op, ErrUnsupported)
	}
	return fmt.Errorf("%s failed hr=0x%08X", op, hr)
}

// NewPlatformDuplicator returns the DXGI duplicator.
func NewPlatformDuplicator() Duplicator { return dxgiDuplicator{} }

type dxgiDuplicator struct{}

type enumerated struct {
	desc    OutputDesc
	adapter uintptr
	output  uintptr
}

// enumerate walks every adapter and output. The caller releases the returned
// interfaces.
func enumerate() ([]enumerated, error) {
	if err := procCreateDXGIFactory1.Find(); err != nil {
		return nil, fmt.Errorf("dxgi: %v: %w", err, ErrUnsupported)
	}
	var factory uintptr
	r, _, _ := procCreateDXGIFactory1.Call(uintptr(unsafe.Pointer(&iidIDXGIFactory1)), uintptr(unsafe.Pointer(&factory)))
	if failed(uint32(r)) {
		return nil, hrError("CreateDXGIFactory1", uint32(r))
	}
	defer comRelease(factory)

	var list []enumerated
	for a := uint32(0); ; a++ {
		var adapter uintptr
		hr := comCall(factory, vtFactoryEnumAdapters1, uintptr(a), uintptr(unsafe.Pointer(&adapter)))
		if hr == dxgiErrorNotFound {
			break
		}
		if failed(hr) {
			releaseAll(list)
			return nil, hrError("EnumAdapters1", hr)
		}
		found := 0
		for o := uint32(0); ; o++ {
			var output uintptr
			hr := comCall(adapter, vtAdapterEnumOutputs, uintptr(o), uintptr(unsafe.Pointer(&output)))
			if hr == dxgiErrorNotFound || failed(hr) {
				break
			}
			var d outputDesc
			if failed(comCall(output, vtOutputGetDesc, uintptr(unsafe.Pointer(&d)))) {
				comRelease(output)
				continue
			}
			// each entry holds its own adapter reference
			if found > 0 {
				adapter = addRef(adapter)
			}
			found++
			c := d.DesktopCoordinates
			list = append(list, enumerated{
				desc: OutputDesc{
					Index:  len(list),
					Name:   windows.UTF16ToString(d.DeviceName[:]),
					Bounds: image.Rect(int(c.Left), int(c.Top), int(c.Right), int(c.Bottom)),
				},
				adapter: adapter,
				output:  output,
			})
		}
		if found == 0 {
			comRelease(adapter)
		}
	}
	return list, nil
}

func addRef(obj uintptr) uintptr {
	comCall(obj, 1)
	return obj
}

func releaseAll(list []enumerated) {
	for _, e := range list {
		comRelease(e.output)
		comRelease(e.adapter)
	}
}

func (dxgiDuplicator) Outputs() ([]OutputDesc, error) {
	list, err := enumerate()
	if err != nil {
		return nil, err
	}
	defer releaseAll(list)
	outs := make([]OutputDesc, len(list))
	for i, e := range list {
		outs[i] = e.desc
	}
	return outs, nil
}

func (dxgiDuplicator) Open(want OutputDesc) (DuplicationOutput, error) {
	list, err := enumerate()
	if err != nil {
		return nil, err
	}
	var sel *enumerated
	for i := range list {
		if list[i].desc.Index == want.Index && list[i].desc.Bounds == want.Bounds {
			sel = &list[i]
			break
		}
	}
	if sel == nil {
		releaseAll(list)
		return nil, ErrNoOutput
	}
	// keep the selected adapter and output, release the rest
	for i := range list {
		if &list[i] != sel {
			comRelease(list[i].output)
			comRelease(list[i].adapter)
		}
	}
	s := &dxgiSession{adapter: sel.adapter, output: sel.output, bounds: sel.desc.Bounds}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

type dxgiSession struct {
	adapter  uintptr
	output   uintptr
	output1  uintptr
	device   uintptr
	context  uintptr
	dupl     uintptr
	staging  uintptr
	acquired uintptr // ID3D11Texture2D of the held frame
	held     bool
	bounds   image.Rectangle
}

func (s *dxgiSession) init() error {
	if err := procD3D11CreateDevice.Find(); err != nil {
		return fmt.Errorf("d3d11: %v: %w", err, ErrUnsupported)
	}
	r, _, _ := procD3D11CreateDevice.Call(s.adapter, d3dDriverTypeUnknown, 0, 0, 0, 0, d3d11SDKVersion,
		uintptr(unsafe.Pointer(&s.device)), 0, uintptr(unsafe.Pointer(&s.context)))
	if failed(uint32(r)) {
		return hrError("D3D11CreateDevice", uint32(r))
	}
	if hr := comCall(s.output, vtQueryInterface, uintptr(unsafe.Pointer(&iidIDXGIOutput1)), uintptr(unsafe.Pointer(&s.output1))); failed(hr) {
		// IDXGIOutput1 is missing before Windows 8
		return fmt.Errorf("QueryInterface IDXGIOutput1 hr=0x%08X: %w", hr, ErrUnsupported)
	}
	if hr := comCall(s.output1, vtOutput1Duplicate, s.device, uintptr(unsafe.Pointer(&s.dupl))); failed(hr) {
		return hrError("DuplicateOutput", hr)
	}
	desc := texture2DDesc{
		Width:          uint32(s.bounds.Dx()),
		Height:         uint32(s.bounds.Dy()),
		MipLevels:      1,
		ArraySize:      1,
		Format:         formatB8G8R8A8Unorm,
		SampleCount:    1,
		Usage:          usageStaging,
		CPUAccessFlags: cpuAccessRead,
	}
	if hr := comCall(s.device, vtDeviceCreateTexture, uintptr(unsafe.Pointer(&desc)), 0, uintptr(unsafe.Pointer(&s.staging))); failed(hr) {
		return hrError("CreateTexture2D", hr)
	}
	return nil
}

func (s *dxgiSession) AcquireNextFrame(timeout time.Duration) (AcquireStatus, error) {
	if s.held {
		_ = s.ReleaseFrame()
	}
	var info [64]byte // DXGI_OUTDUPL_FRAME_INFO
	var resource uintptr
	hr := comCall(s.dupl, vtDuplAcquireNextFrame, uintptr(uint32(timeout.Milliseconds())),
		uintptr(unsafe.Pointer(&info[0])), uintptr(unsafe.Pointer(&resource)))
	switch hr {
	case 0:
	case dxgiErrorWaitTimeout:
		return FrameTimeout, nil
	case dxgiErrorAccessLost, dxgiErrorDeviceRemoved:
		return FrameAccessLost, nil
	default:
		return FrameAccessLost, hrError("AcquireNextFrame", hr)
	}
	s.held = true
	defer comRelease(resource)
	if hr := comCall(resource, vtQueryInterface, uintptr(unsafe.Pointer(&iidID3D11Texture2D)), uintptr(unsafe.Pointer(&s.acquired))); failed(hr) {
		_ = s.ReleaseFrame()
		return FrameAccessLost, hrError("QueryInterface ID3D11Texture2D", hr)
	}
	return FrameReady, nil
}

func (s *dxgiSession) CopyRect(src image.Rectangle, dst *Frame, at image.Point) error {
	if s.acquired == 0 {
		return fmt.Errorf("no acquired frame")
	}
	b := box{Left: uint32(src.Min.X), Top: uint32(src.Min.Y), Right: uint32(src.Max.X), Bottom: uint32(src.Max.Y), Back: 1}
	syscall.SyscallN(vtableFn(s.context, vtContextCopyRegion), s.context, s.staging, 0,
		uintptr(src.Min.X), uintptr(src.Min.Y), 0, s.acquired, 0, uintptr(unsafe.Pointer(&b)))

	var m mappedSubresource
	if hr := comCall(s.context, vtContextMap, s.staging, 0, mapRead, 0, uintptr(unsafe.Pointer(&m))); failed(hr) {
		return hrError("Map", hr)
	}
	defer comCall(s.context, vtContextUnmap, s.staging, 0)

	w := src.Dx()
	for y := 0; y < src.Dy(); y++ {
		row := unsafe.Slice((*byte)(unsafe.Pointer(m.PData+uintptr(src.Min.Y+y)*uintptr(m.RowPitch)+uintptr(src.Min.X*4))), w*4)
		off := (at.Y+y)*dst.Stride + at.X*4
		copy(dst.Pix[off:off+w*4], row)
	}
	dst.Layout = LayoutBGRA
	return nil
}

func vtableFn(obj uintptr, idx int) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtbl + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

func (s *dxgiSession) ReleaseFrame() error {
	if !s.held {
		return nil
	}
	comRelease(s.acquired)
	s.acquired = 0
	s.held = false
	if hr := comCall(s.dupl, vtDuplReleaseFrame); failed(hr) && hr != dxgiErrorAccessLost {
		return hrError("ReleaseFrame", hr)
	}
	return nil
}

func (s *dxgiSession) Close() error {
	_ = s.ReleaseFrame()
	for _, p := range []*uintptr{&s.staging, &s.dupl, &s.context, &s.device, &s.output1, &s.output, &s.adapter} {
		comRelease(*p)
		*p = 0
	}
	return nil
}
