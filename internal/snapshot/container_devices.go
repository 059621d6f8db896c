package snapshot

// ControllerHook is one USB-controller's or virtio-input sub-device's save
// and load function pointers, keyed by its container tag. Like
// DeviceDescriptor, these are resolved once at registration time rather
// than probed dynamically.
type ControllerHook struct {
	Tag  uint16
	Save SaveHook
	Load LoadHook
}

// RegisterUSBController registers a UHCI/EHCI/xHCI controller's hooks under
// the AUSB container's tag space. Registering a tag again replaces its hooks.
func (r *Registry) RegisterUSBController(h ControllerHook) {
	for i := range r.usbControllers {
		if r.usbControllers[i].Tag == h.Tag {
			r.usbControllers[i] = h
			return
		}
	}
	r.usbControllers = append(r.usbControllers, h)
}

// RegisterVINPDevice registers a virtio-input keyboard/mouse device's hooks
// under the VINP container's tag space. Registering a tag again replaces its
// hooks.
func (r *Registry) RegisterVINPDevice(h ControllerHook) {
	for i := range r.vinpDevices {
		if r.vinpDevices[i].Tag == h.Tag {
			r.vinpDevices[i] = h
			return
		}
	}
	r.vinpDevices = append(r.vinpDevices, h)
}
