package metal

import "fmt"

// AddObserver calls method on target whenever path changes on obj.
func (rt *Runtime) AddObserver(obj *Object, path string, target any, method Method) error {
	if err := validateKey("observe", obj, path); err != nil {
		return err
	}
	if err := rt.AddListener(obj, changeEvent(path), target, method, false); err != nil {
		return err
	}
	if err := rt.watch(obj, path, rt.metaFor(obj)); err != nil {
		return fmt.Errorf("observe %q: %w", path, err)
	}
	return nil
}

func (rt *Runtime) RemoveObserver(obj *Object, path string, target any, method Method) error {
	if err := validateKey("unobserve", obj, path); err != nil {
		return err
	}
	if err := rt.unwatch(obj, path, rt.metaFor(obj)); err != nil {
		return fmt.Errorf("unobserve %q: %w", path, err)
	}
	return rt.RemoveListener(obj, changeEvent(path), target, method)
}
